package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

func nodeText(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(src)
}

// namespaceOf walks up from node collecting enclosing namespace_definition,
// class_specifier, and struct_specifier names, innermost last.
func namespaceOf(node *sitter.Node, src []byte) string {
	var parts []string
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		switch cur.Type() {
		case "namespace_definition", "class_specifier", "struct_specifier":
			if name := cur.ChildByFieldName("name"); name != nil {
				parts = append(parts, nodeText(name, src))
			}
		}
	}
	if len(parts) == 0 {
		return ""
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "::")
}

func findChildByType(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		if child.Type() == kind {
			return child
		}
		if found := findChildByType(child, kind); found != nil {
			return found
		}
	}
	return nil
}

func hasChildType(node *sitter.Node, kind string) bool {
	if node == nil {
		return false
	}
	for i := range int(node.ChildCount()) {
		if node.Child(i).Type() == kind {
			return true
		}
	}
	return false
}

// precedingMacroName returns the name of a macro-call statement immediately
// preceding node at the same sibling level, or "" if none. Standard
// tree-sitter-cpp parses `UCLASS(Blueprintable)\nclass AFoo ...` as two
// adjacent statements, so the macro decoration is recovered by sibling
// lookup rather than a grammar-level wrapper node.
func precedingMacroName(node *sitter.Node, src []byte) string {
	prev := node.PrevNamedSibling()
	if prev == nil {
		return ""
	}
	call := findChildByType(prev, "call_expression")
	if call == nil && prev.Type() == "call_expression" {
		call = prev
	}
	if call == nil {
		return ""
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		return ""
	}
	return nodeText(fn, src)
}

// cleanTypeString strips storage/qualifier keywords and UE annotation
// macros from a raw text span, leaving just the return-type tokens.
func cleanTypeString(s string) string {
	var words []string
	for _, w := range strings.Fields(s) {
		switch {
		case w == "virtual", w == "static", w == "inline", w == "const", w == "friend":
		case w == "class", w == "struct", w == "enum":
		case w == "FORCEINLINE", w == "FORCEINLINE_DEBUGGABLE":
		case strings.HasPrefix(w, "UE_DEPRECATED"):
		case strings.HasSuffix(w, "_API"):
		case strings.HasPrefix(w, "UFUNCTION"), strings.HasPrefix(w, "UPROPERTY"):
		default:
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

func cleanFuncName(raw string) string {
	cut := strings.IndexAny(raw, "([=;")
	if cut >= 0 {
		raw = raw[:cut]
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimLeft(raw, "*& ")
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
