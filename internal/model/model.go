// Package model holds the data shapes shared across the indexing pipeline:
// the relational entities of the store, the extractor's wire records, and
// the daemon's RPC envelopes.
package model

// ComponentType is the kind of ownership unit a Component represents.
type ComponentType string

const (
	ComponentGame   ComponentType = "Game"
	ComponentEngine ComponentType = "Engine"
	ComponentPlugin ComponentType = "Plugin"
)

// ModuleType labels a Module's build kind.
type ModuleType string

const (
	ModuleRuntime   ModuleType = "Runtime"
	ModuleEditor    ModuleType = "Editor"
	ModuleDeveloper ModuleType = "Developer"
	ModuleProgram   ModuleType = "Program"
	ModuleConfig    ModuleType = "Config"
	ModuleShader    ModuleType = "Shader"
	ModuleGlobal    ModuleType = "Global"
)

// SymbolType is the kind of a Class row, including the engine-macro
// upgrades (UCLASS/USTRUCT/UENUM) and synthetic forms (typedef, delegate).
type SymbolType string

const (
	SymbolClass     SymbolType = "class"
	SymbolStruct    SymbolType = "struct"
	SymbolEnum      SymbolType = "enum"
	SymbolUClass    SymbolType = "UCLASS"
	SymbolUStruct   SymbolType = "USTRUCT"
	SymbolUEnum     SymbolType = "UENUM"
	SymbolUInterf   SymbolType = "UINTERFACE"
	SymbolTypedef   SymbolType = "typedef"
)

// MemberType is the kind of a Member row.
type MemberType string

const (
	MemberFunction MemberType = "function"
	MemberProperty MemberType = "property"
	MemberVariable MemberType = "variable"
	MemberEnumItem MemberType = "enum_item"
)

// Access is a member's visibility within its owning class.
type Access string

const (
	AccessPublic    Access = "public"
	AccessProtected Access = "protected"
	AccessPrivate   Access = "private"
	AccessImpl      Access = "impl" // out-of-line definition, scope resolved via ClassName::
)

// Component is a unit of code ownership: the game project, the engine, or a
// plugin (§3).
type Component struct {
	ID                 int64
	Name               string
	DisplayName        string
	Type               ComponentType
	OwnerName          string
	RootPath           string
	UpluginPath        string
	UprojectPath       string
	EngineAssociation  string
}

// Module is a buildable unit inside a Component (§3). DeepDependencies is
// the JSON-serialized transitive closure of declared dependencies.
type Module struct {
	ID                 int64
	Name               string
	Type               ModuleType
	Scope              string
	RootPath           string
	BuildDescPath      string
	OwnerName          string
	ComponentName      string
	DeepDependencies   []string
}

// File is a source file discovered under a component/module root (§3).
type File struct {
	ID        int64
	Path      string
	Filename  string
	Extension string
	Mtime     int64
	ModuleID  int64
	IsHeader  bool
	FileHash  string
}

// Class is any type-like symbol extracted from a header (§3).
type Class struct {
	ID         int64
	Name       string
	Namespace  string
	BaseClass  string // first of BaseClasses, denormalized for quick joins
	FileID     int64
	LineNumber int
	SymbolType SymbolType
}

// Member is a function or property bound to a Class (§3).
type Member struct {
	ID         int64
	ClassID    int64
	Name       string
	Type       MemberType
	Flags      string
	Access     Access
	Detail     string
	ReturnType string
	IsStatic   bool
	LineNumber int
}

// EnumValue is one enumerator of an enum/UENUM Class.
type EnumValue struct {
	ID     int64
	EnumID int64
	Name   string
}

// InheritanceEdge is an unresolved parent-name reference from a child Class.
type InheritanceEdge struct {
	ID         int64
	ChildID    int64
	ParentName string
}
