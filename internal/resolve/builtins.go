package resolve

// builtins is the set of names the runtime makes available without an
// import. It is used only when --ignore-builtin-unresolved is set, to drop
// Pass B entries like len() or isinstance() that can never resolve to a
// qualname in the scanned tree.
var builtins = map[string]bool{
	"abs": true, "aiter": true, "anext": true, "all": true, "any": true,
	"ascii": true, "bin": true, "bool": true, "breakpoint": true,
	"bytearray": true, "bytes": true, "callable": true, "chr": true,
	"classmethod": true, "compile": true, "complex": true, "delattr": true,
	"dict": true, "dir": true, "divmod": true, "enumerate": true, "eval": true,
	"exec": true, "filter": true, "float": true, "format": true,
	"frozenset": true, "getattr": true, "globals": true, "hasattr": true,
	"hash": true, "help": true, "hex": true, "id": true, "input": true,
	"int": true, "isinstance": true, "issubclass": true, "iter": true,
	"len": true, "list": true, "locals": true, "map": true, "max": true,
	"memoryview": true, "min": true, "next": true, "object": true, "oct": true,
	"open": true, "ord": true, "pow": true, "print": true, "property": true,
	"range": true, "repr": true, "reversed": true, "round": true, "set": true,
	"setattr": true, "slice": true, "sorted": true, "staticmethod": true,
	"str": true, "sum": true, "super": true, "tuple": true, "type": true,
	"vars": true, "zip": true, "__import__": true,
	"BaseException": true, "Exception": true, "ArithmeticError": true,
	"AssertionError": true, "AttributeError": true, "EOFError": true,
	"FileNotFoundError": true, "ImportError": true, "IndexError": true,
	"KeyError": true, "KeyboardInterrupt": true, "LookupError": true,
	"MemoryError": true, "NameError": true, "NotImplementedError": true,
	"OSError": true, "OverflowError": true, "RuntimeError": true,
	"StopIteration": true, "StopAsyncIteration": true, "SyntaxError": true,
	"SystemError": true, "SystemExit": true, "TypeError": true,
	"UnicodeError": true, "ValueError": true, "ZeroDivisionError": true,
}

// IsBuiltin reports whether name is a runtime built-in symbol.
func IsBuiltin(name string) bool {
	return builtins[name]
}
