package rulehelpers

import (
	"regexp"
	"strings"
)

// Category is how a C++ value crosses into Python.
type Category string

// Categories.
const (
	Void    Category = "void"
	Byte    Category = "BYTE"
	Integer Category = "INTEGER"
	Float   Category = "FLOAT"
	Pointer Category = "POINTER"
	Object  Category = "OBJECT"
)

func (c Category) primitive() bool {
	return c == Byte || c == Integer || c == Float
}

var (
	integerWords = regexp.MustCompile(`\b(?:bool|short|int|long|unsigned|signed|size_t|ssize_t|qsizetype|qint\d+|quint\d+|qlonglong|qulonglong|u?int\d+_t|uchar|ushort|uint|ulong|mode_t|pid_t|WId|Qt::HANDLE)\b`)
	floatWords   = regexp.MustCompile(`\b(?:float|double|qreal)\b`)
	byteWords    = regexp.MustCompile(`\b(?:char|qint8|quint8)\b`)
)

// BaseType strips one trailing "*" or "&" and a leading "const ".
func BaseType(t string) string {
	t = strings.TrimSpace(t)
	if strings.HasSuffix(t, "*") || strings.HasSuffix(t, "&") {
		t = strings.TrimSpace(t[:len(t)-1])
	}

	return strings.TrimPrefix(t, "const ")
}

// Categorise classifies a C++ type spelling. isEnum recognises enum types
// declared in the header; it may be nil.
func Categorise(cxxT string, isEnum func(string) bool) Category {
	cxxT = strings.TrimSpace(cxxT)

	switch {
	case strings.HasSuffix(cxxT, "*"):
		return Pointer
	case strings.HasSuffix(cxxT, "&"):
		return Categorise(strings.TrimSpace(cxxT[:len(cxxT)-1]), isEnum)
	case cxxT == "void":
		return Void
	case strings.Contains(cxxT, "<"):
		return Object
	case isEnum != nil && isEnum(BaseType(cxxT)):
		return Integer
	case byteWords.MatchString(cxxT):
		return Byte
	case floatWords.MatchString(cxxT):
		return Float
	case integerWords.MatchString(cxxT):
		return Integer
	default:
		return Object
	}
}

// HeldAs describes a C++ type for the generated conversion code.
type HeldAs struct {
	CxxT     string
	BaseT    string
	Category Category
	// SipT locates the sipTypeDef: "sipType_KFoo_Bar", a primitive
	// category, or a run-time lookup for mapped types.
	SipT   string
	Mapped bool
}

// NewHeldAs classifies cxxT.
func NewHeldAs(cxxT string, isEnum func(string) bool) HeldAs {
	base := BaseType(cxxT)
	h := HeldAs{CxxT: strings.TrimSpace(cxxT), BaseT: base, Category: Categorise(cxxT, isEnum)}

	switch baseCategory := Categorise(base, isEnum); {
	case strings.Contains(base, "<"):
		h.Mapped = true
		h.SipT = "sipFindType(cxx{name}S)"
	case baseCategory.primitive():
		h.SipT = string(baseCategory)
	default:
		h.SipT = "sipType_" + strings.ReplaceAll(base, "::", "_")
	}

	return h
}

// Complex reports whether values travel through a sipTypeDef.
func (h HeldAs) Complex() bool {
	return h.Category == Pointer || h.Category == Object
}

// pointsToPrimitive is true for "int *" and friends.
func (h HeldAs) pointsToPrimitive() bool {
	return h.Category == Pointer && Category(h.SipT).primitive()
}

// Declare emits the local aliases the conversion snippets refer to:
// cxx<name>S, Cxx<name>T and gen<name>T.
func (h HeldAs) Declare(name, onError string, needString, needCxxT bool) string {
	var b strings.Builder

	if h.Mapped || needString {
		b.WriteString("    const char *cxx{name}S = \"{cxx_t}\";\n")
	}

	if needCxxT {
		b.WriteString("    typedef {cxx_t} Cxx{name}T;\n")
	}

	if h.Complex() {
		switch {
		case h.Mapped:
			b.WriteString(`    static const sipTypeDef *gen{name}T = NULL;
    if (gen{name}T == NULL) {
        gen{name}T = {sip_t};
        if (gen{name}T == NULL) {
            PyErr_Format(PyExc_TypeError, "cannot find SIP type for '%s'", cxx{name}S);
            {error}
        }
    }
`)
		case Category(h.SipT).primitive():
		default:
			b.WriteString("    const sipTypeDef *gen{name}T = {sip_t};\n")
		}
	}

	return strings.NewReplacer(
		"{sip_t}", strings.ReplaceAll(h.SipT, "{name}", name),
		"{name}", name,
		"{error}", onError,
		"{cxx_t}", h.CxxT,
	).Replace(b.String())
}

// conversions is one family of snippets, keyed by category. Pointer
// tables apply to pointers to primitives and are keyed by the pointee.
type conversions struct {
	cxxToPy, pyToCxx       map[Category]string
	cxxToPyPtr, pyToCxxPtr map[Category]string
}

func (c *conversions) pick(h HeldAs, table, ptrTable map[Category]string) string {
	if h.pointsToPrimitive() {
		if s, ok := ptrTable[Category(h.SipT)]; ok {
			return s
		}
	}

	return table[h.Category]
}

func expand(snippet, name, value string, transfer bool) string {
	t := "NULL"
	if transfer {
		t = "sipTransferObj"
	}

	return strings.NewReplacer("{name}", name, "{value}", value, "{transfer}", t).Replace(snippet)
}

// Converter binds a HeldAs to a family of conversion snippets. Template
// files call its methods.
type Converter struct {
	HeldAs

	conv *conversions
}

// CxxToPy converts the C++ expression value into the PyObject name.
func (c Converter) CxxToPy(name, value string, transfer bool) string {
	return expand(c.conv.pick(c.HeldAs, c.conv.cxxToPy, c.conv.cxxToPyPtr), name, value, transfer)
}

// PyToCxx converts the PyObject expression value into cxx<name>.
func (c Converter) PyToCxx(name, value string, transfer bool) string {
	return expand(c.conv.pick(c.HeldAs, c.conv.pyToCxx, c.conv.pyToCxxPtr), name, value, transfer)
}

// CheckPython rejects a PyObject of the wrong type. extra runs before the
// early return.
func (c Converter) CheckPython(name, extra string) string {
	var s string

	switch category := c.Category; {
	case c.pointsToPrimitive():
		category = Category(c.SipT)
		fallthrough
	case category.primitive():
		check := map[Category]string{Byte: "PyBytes_Check", Integer: "PyLong_Check", Float: "PyFloat_Check"}[category]
		s = "            if (!" + check + "({name})) {\n                {extra}return 0;\n            }\n"
	default:
		s = "            if (!sipCanConvertToType({name}, gen{name}T, SIP_NOT_NONE)) {\n                {extra}return 0;\n            }\n"
	}

	return strings.NewReplacer("{name}", name, "{extra}", extra).Replace(s)
}

// Release frees the temporary created by PyToCxx.
func (c Converter) Release(name string) string {
	if !c.Complex() || c.pointsToPrimitive() {
		return ""
	}

	return strings.ReplaceAll("        sipReleaseType((void *)cxx{name}, gen{name}T, {name}State);\n", "{name}", name)
}

// Insertable is the C++ value to store in a container.
func (c Converter) Insertable(name string) string {
	if c.Category == Object {
		return "*cxx" + name
	}

	return "cxx" + name
}

// Decref drops a PyObject reference on the error path.
func (c Converter) Decref(name string) string {
	return "            Py_XDECREF(" + name + ");\n"
}

// mappedTypeConversions convert the elements of %MappedType containers.
var mappedTypeConversions = &conversions{
	cxxToPy: map[Category]string{
		Byte:    "        PyObject *{name} = PyLong_FromLong((long){value});\n",
		Integer: "        PyObject *{name} = PyLong_FromLong((long){value});\n",
		Float:   "        PyObject *{name} = PyFloat_FromDouble((double){value});\n",
		Pointer: "        Cxx{name}T cxx{name} = {value};\n" +
			"        PyObject *{name} = sipConvertFromType((void *)cxx{name}, gen{name}T, {transfer});\n",
		Object: "        Cxx{name}T *cxx{name} = new Cxx{name}T({value});\n" +
			"        PyObject *{name} = sipConvertFromNewType((void *)cxx{name}, gen{name}T, {transfer});\n",
	},
	pyToCxx: map[Category]string{
		Byte:    "        Cxx{name}T cxx{name} = (Cxx{name}T)PyLong_AsLong({value});\n",
		Integer: "        Cxx{name}T cxx{name} = (Cxx{name}T)PyLong_AsLong({value});\n",
		Float:   "        Cxx{name}T cxx{name} = (Cxx{name}T)PyFloat_AsDouble({value});\n",
		Pointer: "        int {name}State;\n" +
			"        Cxx{name}T cxx{name} = reinterpret_cast<Cxx{name}T>(sipForceConvertToType({value}, gen{name}T, {transfer}, SIP_NOT_NONE, &{name}State, sipIsErr));\n",
		Object: "        int {name}State;\n" +
			"        Cxx{name}T *cxx{name} = reinterpret_cast<Cxx{name}T *>(sipForceConvertToType({value}, gen{name}T, {transfer}, SIP_NOT_NONE, &{name}State, sipIsErr));\n",
	},
	cxxToPyPtr: map[Category]string{
		Byte:    "        PyObject *{name} = PyBytes_FromStringAndSize((char *)({value}), 1);\n",
		Integer: "        PyObject *{name} = PyLong_FromLong((long)*({value}));\n",
		Float:   "        PyObject *{name} = PyFloat_FromDouble((double)*({value}));\n",
	},
	pyToCxxPtr: map[Category]string{
		Byte: "        Cxx{name}T cxx{name} = (Cxx{name}T)PyBytes_AsString({value});\n",
	},
}

// variableConversions back %GetCode and %SetCode of mapped variables.
var variableConversions = &conversions{
	cxxToPy: map[Category]string{
		Byte: "    Cxx{name}T cxx{name} = {value};\n" +
			"    PyObject *{name} = PyLong_FromLong((long)cxx{name});\n",
		Integer: "    Cxx{name}T cxx{name} = {value};\n" +
			"    PyObject *{name} = PyLong_FromLong((long)cxx{name});\n",
		Float: "    Cxx{name}T cxx{name} = {value};\n" +
			"    PyObject *{name} = PyFloat_FromDouble((double)cxx{name});\n",
		Pointer: "    Cxx{name}T cxx{name} = {value};\n" +
			"    PyObject *{name} = sipConvertFromType(cxx{name}, gen{name}T, {transfer});\n",
		Object: "    Cxx{name}T *cxx{name} = &{value};\n" +
			"    PyObject *{name} = sipConvertFromType(cxx{name}, gen{name}T, {transfer});\n",
	},
	pyToCxx: map[Category]string{
		Byte:    "    Cxx{name}T cxx{name} = (Cxx{name}T)PyLong_AsLong(sipPy);\n",
		Integer: "    Cxx{name}T cxx{name} = (Cxx{name}T)PyLong_AsLong(sipPy);\n",
		Float:   "    Cxx{name}T cxx{name} = (Cxx{name}T)PyFloat_AsDouble(sipPy);\n",
		Pointer: "    int {name}State;\n" +
			"    Cxx{name}T cxx{name} = NULL;\n" +
			"    cxx{name} = reinterpret_cast<Cxx{name}T>(sipForceConvertToType(sipPy, gen{name}T, {transfer}, SIP_NOT_NONE, &{name}State, &sipErr));\n",
		Object: "    int {name}State;\n" +
			"    Cxx{name}T *cxx{name} = NULL;\n" +
			"    cxx{name} = reinterpret_cast<Cxx{name}T *>(sipForceConvertToType(sipPy, gen{name}T, {transfer}, SIP_NOT_NONE, &{name}State, &sipErr));\n",
	},
}

// arrayConversions fill and read the elements of SIP_PYLIST arrays.
var arrayConversions = &conversions{
	cxxToPy: map[Category]string{
		Byte:    "                    {name} = PyLong_FromLong((long){value});\n",
		Integer: "                    {name} = PyLong_FromLong((long){value});\n",
		Float:   "                    {name} = PyFloat_FromDouble((double){value});\n",
		Pointer: "                    {name} = sipConvertFromType({value}, gen{name}T, {transfer});\n",
		Object:  "                    {name} = sipConvertFromType(&{value}, gen{name}T, {transfer});\n",
	},
	pyToCxx: map[Category]string{
		Byte:    "                        {value} = (Cxx{name}T)PyLong_AsLong({name});\n",
		Integer: "                        {value} = (Cxx{name}T)PyLong_AsLong({name});\n",
		Float:   "                        {value} = (Cxx{name}T)PyFloat_AsDouble({name});\n",
		Pointer: "                        int {name}State;\n" +
			"                        {value} = reinterpret_cast<Cxx{name}T>(sipForceConvertToType({name}, gen{name}T, {transfer}, SIP_NOT_NONE, &{name}State, sipErr));\n",
		Object: "                        int {name}State;\n" +
			"                        Cxx{name}T *cxx{name} = reinterpret_cast<Cxx{name}T *>(sipForceConvertToType({name}, gen{name}T, {transfer}, SIP_NOT_NONE, &{name}State, sipErr));\n" +
			"                        if (!*sipErr) {\n" +
			"                            {value} = *cxx{name};\n" +
			"                        }\n",
	},
}
