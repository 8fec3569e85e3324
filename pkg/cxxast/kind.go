package cxxast

// Kind classifies a cursor. A cursor's kind is fixed when it is wrapped.
type Kind int

// Cursor kinds.
const (
	KindUnknown Kind = iota
	KindTranslationUnit
	KindNamespace
	KindClass
	KindStruct
	KindUnion
	KindClassTemplate
	KindEnum
	KindEnumConstant
	KindFunction
	KindMethod
	KindConstructor
	KindDestructor
	KindFunctionTemplate
	KindTypedef
	KindVariable
	KindField
	KindParameter
	KindTemplateParameter
	KindBaseSpecifier
	KindForwardDeclaration
	KindAccessSpecifier
	KindUsingDeclaration
	KindUnexposed
)

var kindNames = map[Kind]string{
	KindUnknown:            "UNKNOWN",
	KindTranslationUnit:    "TRANSLATION_UNIT",
	KindNamespace:          "NAMESPACE",
	KindClass:              "CLASS_DECL",
	KindStruct:             "STRUCT_DECL",
	KindUnion:              "UNION_DECL",
	KindClassTemplate:      "CLASS_TEMPLATE",
	KindEnum:               "ENUM_DECL",
	KindEnumConstant:       "ENUM_CONSTANT_DECL",
	KindFunction:           "FUNCTION_DECL",
	KindMethod:             "CXX_METHOD",
	KindConstructor:        "CONSTRUCTOR",
	KindDestructor:         "DESTRUCTOR",
	KindFunctionTemplate:   "FUNCTION_TEMPLATE",
	KindTypedef:            "TYPEDEF_DECL",
	KindVariable:           "VAR_DECL",
	KindField:              "FIELD_DECL",
	KindParameter:          "PARM_DECL",
	KindTemplateParameter:  "TEMPLATE_PARAMETER",
	KindBaseSpecifier:      "CXX_BASE_SPECIFIER",
	KindForwardDeclaration: "FORWARD_DECLARATION",
	KindAccessSpecifier:    "CXX_ACCESS_SPEC_DECL",
	KindUsingDeclaration:   "USING_DECLARATION",
	KindUnexposed:          "UNEXPOSED_DECL",
}

// String returns the upper-case kind name used in diagnostics.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return kindNames[KindUnknown]
}

// IsContainer reports whether cursors of this kind hold declarations.
func (k Kind) IsContainer() bool {
	switch k {
	case KindNamespace, KindClass, KindStruct, KindUnion, KindClassTemplate:
		return true
	default:
		return false
	}
}

// IsFunction reports whether the kind is any flavour of function.
func (k Kind) IsFunction() bool {
	switch k {
	case KindFunction, KindMethod, KindConstructor, KindDestructor, KindFunctionTemplate:
		return true
	default:
		return false
	}
}

// Access is a C++ member access level.
type Access int

// Access levels. AccessNone applies to cursors outside classes.
const (
	AccessNone Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

// String returns the C++ keyword for the access level.
func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return ""
	}
}

func parseAccess(keyword string) Access {
	switch keyword {
	case "public":
		return AccessPublic
	case "protected":
		return AccessProtected
	case "private":
		return AccessPrivate
	default:
		return AccessNone
	}
}
