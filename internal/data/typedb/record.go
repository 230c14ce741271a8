package typedb

import (
	"time"

	"pyintel/internal/engine/ast"
	"pyintel/internal/engine/values"
)

// Baseline describes a saved database as a whole.
type Baseline struct {
	FormatVersion   byte              `json:"format_version"`
	LanguageVersion string            `json:"language_version"`
	BuiltinTypes    []string          `json:"builtin_types"`
	Modules         []string          `json:"modules"`
	Sources         map[string]string `json:"sources,omitempty"` // module -> source path
	Session         string            `json:"session"`
	SavedAt         time.Time         `json:"saved_at"`
}

type moduleRecord struct {
	Name    string         `json:"name"`
	Path    string         `json:"path"`
	Doc     string         `json:"doc,omitempty"`
	Members []memberRecord `json:"members"`
	// Values holds the classes, functions and composite values the module
	// defines. typeRef.Local indexes into it, starting at 1.
	Values []valueRecord `json:"values,omitempty"`
}

type memberRecord struct {
	Name  string    `json:"name"`
	Types []typeRef `json:"types,omitempty"`
}

// typeRef points at a value. Exactly one of the locator fields is set; the
// zero ref is Unknown.
type typeRef struct {
	Local    int         `json:"l,omitempty"`
	Builtin  string      `json:"b,omitempty"`
	Interp   string      `json:"i,omitempty"`
	Module   string      `json:"m,omitempty"`
	Path     string      `json:"p,omitempty"`
	Foreign  string      `json:"f,omitempty"`
	Kind     values.Kind `json:"k,omitempty"`
	Instance bool        `json:"inst,omitempty"`
}

type paramRecord struct {
	Name    string        `json:"name"`
	Kind    ast.ParamKind `json:"kind,omitempty"`
	Default string        `json:"default,omitempty"`
	Types   []typeRef     `json:"types,omitempty"`
}

const (
	flagStatic = 1 << iota
	flagClassMethod
	flagLambda
	flagGenerator
)

type valueRecord struct {
	Kind  values.Kind `json:"kind"`
	Name  string      `json:"name,omitempty"`
	Doc   string      `json:"doc,omitempty"`
	Flags int         `json:"flags,omitempty"`

	// Classes.
	Bases         []typeRef      `json:"bases,omitempty"`
	Metaclass     *typeRef       `json:"metaclass,omitempty"`
	Attrs         []memberRecord `json:"attrs,omitempty"`
	InstanceAttrs []memberRecord `json:"instance_attrs,omitempty"`

	// Containers; Class is also the declaring class of a method.
	Class    *typeRef    `json:"class,omitempty"`
	Elements []typeRef   `json:"elements,omitempty"`
	Keys     []typeRef   `json:"keys,omitempty"`
	Items    [][]typeRef `json:"items,omitempty"`

	// Functions.
	Params  []paramRecord `json:"params,omitempty"`
	Returns []typeRef     `json:"returns,omitempty"`

	// Bound methods and properties use Func; generics use Func for the
	// foreign type and Elements for the arguments.
	Func *typeRef `json:"func,omitempty"`
	Self *typeRef `json:"self,omitempty"`
}
