package parser

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crateindex/crateindex/internal/types"
)

const sampleRust = `//! sample module docs

use std::fmt;

/// Adds two numbers.
pub fn add(a: i32, b: i32) -> Result<i32, String> {
    if a < 0 {
        return Err("negative".to_string());
    }
    let sum = a + b;
    helper(sum)?;
    Ok(sum)
}

fn helper(n: i32) -> Result<(), String> {
    Ok(())
}

pub struct Point {
    pub x: i32,
    y: i32,
}

#[derive(Debug, Clone)]
pub enum Shape {
    Circle(f64),
    Rect { w: f64, h: f64 },
}

pub trait Area {
    fn area(&self) -> f64;
}

impl Area for Point {
    fn area(&self) -> f64 {
        0.0
    }
}

#[test]
fn test_add() {
    assert_eq!(add(1, 2).unwrap(), 3);
}
`

func TestParseRustExtractsSymbols(t *testing.T) {
	pf, err := Parse(context.Background(), "src/lib.rs", []byte(sampleRust))
	require.NoError(t, err)
	assert.False(t, pf.ParseFailed)
	require.NotNil(t, pf.ModuleDoc)
	assert.Contains(t, *pf.ModuleDoc, "sample module docs")

	var names []string
	for _, s := range pf.FileSymbols.Symbols {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "add")
	assert.Contains(t, names, "Point")
	assert.Contains(t, names, "Shape")
	assert.Contains(t, names, "Area")

	assert.Len(t, pf.FileSymbols.InherentImpls, 0)
	require.Len(t, pf.FileSymbols.ImplMap, 1)
	assert.Equal(t, "Area", pf.FileSymbols.ImplMap[0].Trait)
	assert.Equal(t, "Point", pf.FileSymbols.ImplMap[0].Type)

	metrics, ok := pf.Complexity["add"]
	require.True(t, ok)
	assert.True(t, metrics.Public)
	assert.GreaterOrEqual(t, metrics.Cyclomatic, 1)

	require.Len(t, pf.ErrorFacts, 2)
	assert.Contains(t, pf.TestFunctions, "test_add")
}

const sampleLifetimesAndTraits = `
pub struct Cache<'a> {
    data: &'a str,
}

pub trait Repository: Debug + Clone {
    type Item: Send + Sync;
    fn get(&self, id: u32) -> Self::Item;
}

pub fn longest<'a>(x: &'a str, y: &mut str) -> &'a str {
    x
}

#[cfg(feature = "extra")]
pub fn extra_only() {}

#[cfg_attr(test, derive(Debug))]
pub struct Toggled;
`

func TestParseRustExtractsLifetimeFacts(t *testing.T) {
	pf, err := Parse(context.Background(), "src/lib.rs", []byte(sampleLifetimesAndTraits))
	require.NoError(t, err)

	found := map[string][]string{}
	for _, item := range pf.Lifetimes.Items {
		found[item.Name] = item.Lifetimes
	}
	assert.Equal(t, []string{"'a"}, found["Cache"])
	assert.Equal(t, []string{"'a"}, found["longest"])

	require.NotEmpty(t, pf.Lifetimes.Borrows)
	var sawMutable, sawLifetime bool
	for _, b := range pf.Lifetimes.Borrows {
		if b.Function != "longest" {
			continue
		}
		if b.Mutable {
			sawMutable = true
		}
		if b.Lifetime == "'a" {
			sawLifetime = true
		}
	}
	assert.True(t, sawMutable, "expected a mutable borrow for longest's y parameter")
	assert.True(t, sawLifetime, "expected an explicit lifetime recorded for longest's x parameter")
}

func TestParseRustExtractsSupertraitsAndAssocBounds(t *testing.T) {
	pf, err := Parse(context.Background(), "src/lib.rs", []byte(sampleLifetimesAndTraits))
	require.NoError(t, err)

	var repo *types.Symbol
	for i := range pf.FileSymbols.Symbols {
		if pf.FileSymbols.Symbols[i].Name == "Repository" {
			repo = &pf.FileSymbols.Symbols[i]
		}
	}
	require.NotNil(t, repo)
	require.NotNil(t, repo.Trait)
	assert.ElementsMatch(t, []string{"Debug", "Clone"}, repo.Trait.Supertraits)
	require.Len(t, repo.Trait.AssocTypes, 1)
	assert.ElementsMatch(t, []string{"Send", "Sync"}, repo.Trait.AssocTypes[0].Bounds)
}

func TestParseRustExtractsFeatureGatesSeparatelyFromCfgs(t *testing.T) {
	pf, err := Parse(context.Background(), "src/lib.rs", []byte(sampleLifetimesAndTraits))
	require.NoError(t, err)

	require.NotEmpty(t, pf.FeatureGates)
	var sawFeature, sawAttr bool
	for _, g := range pf.FeatureGates {
		if g.Target == "extra_only" {
			sawFeature = true
		}
		if g.Target == "Toggled" {
			sawAttr = true
		}
	}
	assert.True(t, sawFeature, "expected a feature-gate record for extra_only")
	assert.True(t, sawAttr, "expected a feature-gate record for the cfg_attr'd Toggled")
}

const samplePropagatingCall = `
pub fn load() -> Result<String, String> {
    let data = fetch()?;
    Ok(data)
}

fn fetch() -> Result<String, String> {
    Ok("x".to_string())
}
`

func TestParseRustMarksPropagatedCallEdges(t *testing.T) {
	pf, err := Parse(context.Background(), "src/lib.rs", []byte(samplePropagatingCall))
	require.NoError(t, err)

	var found bool
	for _, fc := range pf.CallGraph {
		if fc.Caller != "load" {
			continue
		}
		for _, edge := range fc.Edges {
			if edge.Target == "fetch" {
				assert.True(t, edge.IsPropagation)
				found = true
			}
		}
	}
	assert.True(t, found, "expected a call edge to fetch marked IsPropagation")
}

func TestParseRustSnippetCapturePolicyByImportance(t *testing.T) {
	var body strings.Builder
	body.WriteString("pub fn busy(x: i32) -> i32 {\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&body, "    if x == %d { return %d; }\n", i, i)
	}
	body.WriteString("    x\n}\n\n")
	body.WriteString("pub fn medium(x: i32) -> i32 {\n    if x > 0 {\n        println!(\"positive\");\n    }\n    x + 1\n}\n\n")
	body.WriteString("fn tiny_helper() -> i32 { 1 }\n")

	pf, err := Parse(context.Background(), "src/lib.rs", []byte(body.String()))
	require.NoError(t, err)

	busy := pf.Complexity["busy"]
	assert.Equal(t, types.ImportanceHigh, busy.Level)

	var busySym, mediumSym, tinySym *types.Symbol
	for i := range pf.FileSymbols.Symbols {
		switch pf.FileSymbols.Symbols[i].Name {
		case "busy":
			busySym = &pf.FileSymbols.Symbols[i]
		case "medium":
			mediumSym = &pf.FileSymbols.Symbols[i]
		case "tiny_helper":
			tinySym = &pf.FileSymbols.Symbols[i]
		}
	}
	require.NotNil(t, busySym)
	require.NotNil(t, mediumSym)
	require.NotNil(t, tinySym)

	require.NotNil(t, busySym.Function)
	assert.NotNil(t, busySym.Function.Body)

	require.NotNil(t, mediumSym.Function)
	assert.Equal(t, types.ImportanceMedium, pf.Complexity["medium"].Level)
	assert.Nil(t, mediumSym.Function.Body)
	assert.NotNil(t, mediumSym.Function.Summary)

	require.NotNil(t, tinySym.Function)
	if pf.Complexity["tiny_helper"].Level == types.ImportanceLow {
		assert.Nil(t, tinySym.Function.Body)
		assert.Nil(t, tinySym.Function.Summary)
	}
}

func TestParsePythonReducedScope(t *testing.T) {
	src := `
import os

def _helper(x):
    return x + 1

class Widget:
    def render(self):
        return "ok"
`
	pf, err := Parse(context.Background(), "pkg/widget.py", []byte(src))
	require.NoError(t, err)
	assert.False(t, pf.ParseFailed)

	var names []string
	for _, s := range pf.FileSymbols.Symbols {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "_helper")
	assert.Contains(t, names, "Widget")
	assert.Contains(t, names, "render")
	assert.Len(t, pf.Imports, 1)
	assert.Empty(t, pf.CallGraph)
}

func TestParsePythonExtractsBaseClasses(t *testing.T) {
	src := `
class Base:
    pass

class Mixin:
    pass

class Widget(Base, Mixin):
    def render(self):
        return "ok"
`
	pf, err := Parse(context.Background(), "pkg/widget.py", []byte(src))
	require.NoError(t, err)

	var widget *types.Symbol
	for i := range pf.FileSymbols.Symbols {
		if pf.FileSymbols.Symbols[i].Name == "Widget" {
			widget = &pf.FileSymbols.Symbols[i]
		}
	}
	require.NotNil(t, widget)
	require.NotNil(t, widget.Struct)
	assert.ElementsMatch(t, []string{"Base", "Mixin"}, widget.Struct.BaseClasses)
}

func TestParseUnsupportedExtensionErrors(t *testing.T) {
	_, err := Parse(context.Background(), "notes.txt", []byte("hello"))
	require.Error(t, err)
}
