package types

// SymbolKind enumerates the shapes the grammar admits. New variants can
// be added without touching consumers that switch on Kind defensively
// (the default case in a switch), which is how the relation builder and
// query layer are written.
type SymbolKind uint8

const (
	SymbolStruct SymbolKind = iota
	SymbolEnum
	SymbolTrait
	SymbolFunction
	SymbolConst
	SymbolStatic
	SymbolTypeAlias
	SymbolModule
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolStruct:
		return "struct"
	case SymbolEnum:
		return "enum"
	case SymbolTrait:
		return "trait"
	case SymbolFunction:
		return "function"
	case SymbolConst:
		return "const"
	case SymbolStatic:
		return "static"
	case SymbolTypeAlias:
		return "type_alias"
	case SymbolModule:
		return "module"
	default:
		return "unknown"
	}
}

// Field is a named, typed struct field (declared type kept as source
// text — the core never does type inference).
type Field struct {
	Name       string
	Type       string
	Visibility Visibility
}

// StructPayload backs SymbolStruct. BaseClasses is populated only for
// Python classes (Rust structs have no superclass concept).
type StructPayload struct {
	Fields      []Field
	BaseClasses []string
}

// VariantPayloadKind tags whether a sum-type variant carries a tuple or
// a record of fields, or nothing at all.
type VariantPayloadKind uint8

const (
	VariantUnit VariantPayloadKind = iota
	VariantTuple
	VariantRecord
)

type Variant struct {
	Name         string
	PayloadKind  VariantPayloadKind
	TupleTypes   []string // when PayloadKind == VariantTuple
	RecordFields []Field  // when PayloadKind == VariantRecord
}

// EnumPayload backs SymbolEnum.
type EnumPayload struct {
	Variants []Variant
}

type MethodSig struct {
	Name        string
	Signature   string
	HasDefault  bool
}

type AssocType struct {
	Name   string
	Bounds []string
}

// TraitPayload backs SymbolTrait.
type TraitPayload struct {
	Supertraits []string
	Methods     []MethodSig
	AssocTypes  []AssocType
}

// SnippetSummary is the compact substitute captured for functions that
// exceed the snippet-byte budget.
type SnippetSummary struct {
	Lines        int
	Statements   int
	EarlyReturns []string
	CallTargets  []string
}

// FunctionPayload backs SymbolFunction.
type FunctionPayload struct {
	Signature string
	Body      *string         // full captured body, when budget allowed
	Summary   *SnippetSummary // populated instead of Body otherwise
}

// ConstPayload backs SymbolConst.
type ConstPayload struct {
	Type  string
	Value *string
}

// StaticPayload backs SymbolStatic.
type StaticPayload struct {
	Type    string
	Mutable bool
	Value   *string
}

// TypeAliasPayload backs SymbolTypeAlias.
type TypeAliasPayload struct {
	Aliased string
}

// Symbol is one declared item. Exactly one of the kind-specific payload
// pointers below is non-nil, matching Kind (nil for SymbolModule). The
// payload is carried as a set of concrete optional fields rather than an
// interface{} so that the binary cache codec (internal/cache) never
// needs a type-tag switch to round-trip it — see DESIGN.md.
type Symbol struct {
	Name          string
	Kind          SymbolKind
	Visibility    Visibility
	Generics      string
	Line          int
	Async         bool
	Unsafe        bool
	Const         bool
	ReExportAlias string

	Struct     *StructPayload
	Enum       *EnumPayload
	Trait      *TraitPayload
	Function   *FunctionPayload
	ConstValue *ConstPayload
	Static     *StaticPayload
	TypeAlias  *TypeAliasPayload
}

// ImplEntry is one (trait, target-type) pair from an impl block.
type ImplEntry struct {
	Trait string
	Type  string
	Line  int
}

type Method struct {
	Name       string
	Visibility Visibility
	Signature  string
	Async      bool
	Unsafe     bool
	Const      bool
	Line       int
	Body       *string
}

// InherentImpl is an impl block with no trait.
type InherentImpl struct {
	Type        string
	Generics    string
	WhereClause string
	Methods     []Method
}

type MacroDecl struct {
	Name     string
	Exported bool
	Line     int
}

// FileSymbols carries everything declared directly in one file.
type FileSymbols struct {
	Symbols       []Symbol
	ImplMap       []ImplEntry
	InherentImpls []InherentImpl
	Macros        []MacroDecl
}
