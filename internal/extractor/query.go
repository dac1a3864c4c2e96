package extractor

// queryStr is the single pattern-query run against every parsed file. It
// captures plain C++ type declarations (class/struct/enum), Unreal macro
// declarations recognized via call-expression shape (UCLASS/USTRUCT/UENUM,
// UPROPERTY/UFUNCTION, DECLARE_*DELEGATE* families), base classes, functions,
// fields, and enumerators, all in one cursor pass.
const queryStr = `
  (class_specifier name: (type_identifier) @class_name) @class_def
  (struct_specifier name: (type_identifier) @struct_name) @struct_def
  (enum_specifier name: (type_identifier) @enum_name) @enum_def
  (alias_declaration) @alias_decl
  (type_definition) @typedef_decl
  (base_class_clause (access_specifier)? (type_identifier) @base_class_name)
  (function_definition declarator: (function_declarator declarator: (_) @func_name)) @func_node
  (function_definition declarator: (pointer_declarator declarator: (function_declarator declarator: (_) @func_name))) @func_node
  (function_definition declarator: (reference_declarator (function_declarator declarator: (_) @func_name))) @func_node
  (field_declaration declarator: (field_identifier) @prop_name) @field_node
  (field_declaration declarator: (function_declarator declarator: (field_identifier) @func_name)) @field_node
  (declaration declarator: (function_declarator declarator: (_) @func_name)) @decl_node
  (declaration declarator: (identifier) @prop_name) @decl_node
  (enumerator name: (identifier) @enum_val_name) @enum_item
  (expression_statement (call_expression function: (identifier) @macro_name arguments: (argument_list) @macro_args)) @macro_stmt
  (declaration (call_expression function: (identifier) @macro_name arguments: (argument_list) @macro_args)) @macro_stmt
`

// unrealSpecifierMacros are the class/struct/enum-level specifier macros;
// the declaration they decorate is always the next sibling.
var unrealSpecifierMacros = map[string]string{
	"UCLASS":     "UCLASS",
	"USTRUCT":    "USTRUCT",
	"UENUM":      "UENUM",
	"UINTERFACE": "UINTERFACE",
}

// delegateMacroPrefixes matches scanner.rs's is_delegate prefix set.
var delegateMacroPrefixes = []string{
	"DECLARE_DELEGATE",
	"DECLARE_MULTICAST_DELEGATE",
	"DECLARE_DYNAMIC_DELEGATE",
	"DECLARE_DYNAMIC_MULTICAST",
	"DECLARE_EVENT",
	"DECLARE_TS_MULTICAST_DELEGATE",
}

func isDelegateMacro(name string) bool {
	for _, prefix := range delegateMacroPrefixes {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
