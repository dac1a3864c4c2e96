// Package extractor turns one source file into the class/member symbols
// defined in it (§4.2): sha256 content hash for cache-hit short-circuiting,
// a single tree-sitter query pass over the C++ grammar (with Unreal macro
// decorations recovered by sibling inspection rather than a grammar
// extension), and a final byte-range pass that assigns every captured
// member to its smallest enclosing class.
package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/taku25/unlscan/internal/model"
)

// Extractor owns the compiled query and language handle, reused across
// every call since both are safe for concurrent read-only use once built.
type Extractor struct {
	lang  *sitter.Language
	query *sitter.Query
}

var (
	shared     *Extractor
	sharedErr  error
	sharedOnce sync.Once
)

// New returns the shared Extractor, compiling the query exactly once.
func New() (*Extractor, error) {
	sharedOnce.Do(func() {
		lang := cpp.GetLanguage()
		q, err := sitter.NewQuery([]byte(queryStr), lang)
		if err != nil {
			sharedErr = fmt.Errorf("extractor: compile query: %w", err)
			return
		}
		shared = &Extractor{lang: lang, query: q}
	})
	return shared, sharedErr
}

type pendingMember struct {
	info       model.MemberInfo
	start, end int
}

// Extract parses one file (§4.2). A hash match against input.OldHash
// short-circuits to StatusCacheHit without touching tree-sitter at all.
func (e *Extractor) Extract(input model.InputFile) model.ParseResult {
	content, err := os.ReadFile(input.Path)
	if err != nil {
		return model.ParseResult{
			Path: input.Path, Status: model.StatusError, Mtime: input.Mtime,
			ModuleID: input.ModuleID, Err: fmt.Errorf("%w: reading %s: %v", model.ErrIO, input.Path, err),
		}
	}

	sum := sha256.Sum256(content)
	newHash := hex.EncodeToString(sum[:])
	if input.OldHash != "" && input.OldHash == newHash {
		return model.ParseResult{
			Path: input.Path, Status: model.StatusCacheHit, Mtime: input.Mtime, ModuleID: input.ModuleID,
		}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(e.lang)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil || tree == nil {
		return model.ParseResult{
			Path: input.Path, Status: model.StatusError, Mtime: input.Mtime,
			ModuleID: input.ModuleID, Err: fmt.Errorf("%w: parsing %s: %v", model.ErrParse, input.Path, err),
		}
	}
	defer tree.Close()

	classes, members := e.walk(tree.RootNode(), content)
	assignMembers(classes, members)

	return model.ParseResult{
		Path:     input.Path,
		Status:   model.StatusParsed,
		Mtime:    input.Mtime,
		ModuleID: input.ModuleID,
		Data: &model.ParseData{
			Classes: classes,
			Parser:  "treesitter",
			NewHash: newHash,
		},
	}
}

func (e *Extractor) walk(root *sitter.Node, src []byte) ([]model.ClassInfo, []pendingMember) {
	cursor := sitter.NewQueryCursor()
	cursor.Exec(e.query, root)

	var classes []model.ClassInfo
	var members []pendingMember

	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		caps := make(map[string]*sitter.Node, len(match.Captures))
		for _, c := range match.Captures {
			node := c.Node
			caps[e.query.CaptureNameForId(c.Index)] = &node
		}

		switch {
		case caps["class_name"] != nil:
			appendTypeDecl(&classes, caps["class_name"], caps["class_def"], model.SymbolClass, src)
		case caps["struct_name"] != nil:
			appendTypeDecl(&classes, caps["struct_name"], caps["struct_def"], model.SymbolStruct, src)
		case caps["enum_name"] != nil:
			appendTypeDecl(&classes, caps["enum_name"], caps["enum_def"], model.SymbolEnum, src)
		case caps["alias_decl"] != nil:
			appendAlias(&classes, caps["alias_decl"], src)
		case caps["typedef_decl"] != nil:
			appendTypedef(&classes, caps["typedef_decl"], src)
		case caps["base_class_name"] != nil:
			appendBaseClass(classes, caps["base_class_name"], src)
		case caps["macro_name"] != nil && caps["macro_args"] != nil:
			appendDelegate(&classes, caps["macro_name"], caps["macro_args"], src)
		case caps["func_name"] != nil:
			node := memberDefNode(caps, "func_node", "field_node", "decl_node")
			if m, ok := buildMember(caps["func_name"], node, model.MemberFunction, src); ok {
				members = append(members, m)
			}
		case caps["prop_name"] != nil:
			node := memberDefNode(caps, "field_node", "decl_node")
			if m, ok := buildMember(caps["prop_name"], node, model.MemberProperty, src); ok {
				members = append(members, m)
			}
		case caps["enum_val_name"] != nil:
			node := caps["enum_item"]
			if node == nil {
				node = caps["enum_val_name"]
			}
			members = append(members, pendingMember{
				info: model.MemberInfo{
					Name: nodeText(caps["enum_val_name"], src), MemType: model.MemberEnumItem, Access: model.AccessPublic,
					LineNumber: int(caps["enum_val_name"].StartPoint().Row) + 1,
				},
				start: int(node.StartByte()), end: int(node.EndByte()),
			})
		}
	}

	return classes, members
}

func memberDefNode(caps map[string]*sitter.Node, keys ...string) *sitter.Node {
	for _, k := range keys {
		if n := caps[k]; n != nil {
			return n
		}
	}
	return nil
}

func appendTypeDecl(classes *[]model.ClassInfo, nameNode, defNode *sitter.Node, symbolType model.SymbolType, src []byte) {
	if defNode == nil {
		return
	}
	if defNode.ChildByFieldName("body") == nil {
		return // forward declaration, no definition to index
	}

	name := nodeText(nameNode, src)
	namespace := namespaceOf(defNode, src)

	if symbolType == model.SymbolEnum && name == "Type" && namespace != "" {
		name = namespace + "::Type"
	}

	if macro := precedingMacroName(defNode, src); macro != "" {
		if _, ok := unrealSpecifierMacros[macro]; ok {
			switch symbolType {
			case model.SymbolClass:
				symbolType = model.SymbolUClass
			case model.SymbolStruct:
				symbolType = model.SymbolUStruct
			case model.SymbolEnum:
				symbolType = model.SymbolUEnum
			}
			if macro == "UINTERFACE" {
				symbolType = model.SymbolUInterf
			}
		}
	}

	rangeStart, rangeEnd := int(defNode.StartByte()), int(defNode.EndByte())
	for _, c := range *classes {
		if c.RangeStart == rangeStart && c.RangeEnd == rangeEnd {
			return // already captured via another alternative in this match set
		}
	}
	if name == "" {
		return
	}

	*classes = append(*classes, model.ClassInfo{
		ClassName:  name,
		Namespace:  namespace,
		SymbolType: symbolType,
		Line:       int(nameNode.StartPoint().Row) + 1,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
	})
}

// appendDelegate recognizes DECLARE_DELEGATE/DECLARE_EVENT family macro
// calls, whose first (or third, for RetVal variants) argument names the
// synthesized delegate type.
func appendDelegate(classes *[]model.ClassInfo, macroNameNode, argsNode *sitter.Node, src []byte) {
	macroName := nodeText(macroNameNode, src)
	if !isDelegateMacro(macroName) {
		return
	}

	var argNames []string
	for i := range int(argsNode.NamedChildCount()) {
		argNames = append(argNames, nodeText(argsNode.NamedChild(i), src))
	}
	idx := 0
	if strings.Contains(macroName, "RetVal") {
		idx = 2
	}
	if idx >= len(argNames) {
		return
	}
	name := strings.TrimSpace(argNames[idx])
	if name == "" {
		return
	}

	stmt := argsNode.Parent() // call_expression
	for stmt != nil && stmt.Type() != "expression_statement" && stmt.Type() != "declaration" {
		stmt = stmt.Parent()
	}
	rangeStart, rangeEnd := int(macroNameNode.StartByte()), int(argsNode.EndByte())
	if stmt != nil {
		rangeStart, rangeEnd = int(stmt.StartByte()), int(stmt.EndByte())
	}

	*classes = append(*classes, model.ClassInfo{
		ClassName:   name,
		Namespace:   namespaceOf(macroNameNode, src),
		BaseClasses: []string{macroName},
		SymbolType:  model.SymbolStruct,
		Line:        int(macroNameNode.StartPoint().Row) + 1,
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
	})
}

func appendAlias(classes *[]model.ClassInfo, node *sitter.Node, src []byte) {
	nameNode := node.ChildByFieldName("name")
	typeNode := node.ChildByFieldName("type")
	if nameNode == nil || typeNode == nil {
		return
	}
	name := nodeText(nameNode, src)
	target := stripTemplateArgs(nodeText(typeNode, src))
	if name == "" || target == "" || name == target {
		return
	}
	*classes = append(*classes, model.ClassInfo{
		ClassName: name, Namespace: namespaceOf(node, src), BaseClasses: []string{target},
		SymbolType: model.SymbolStruct, Line: int(node.StartPoint().Row) + 1,
		RangeStart: int(node.StartByte()), RangeEnd: int(node.EndByte()),
	})
}

func appendTypedef(classes *[]model.ClassInfo, node *sitter.Node, src []byte) {
	nameNode := node.ChildByFieldName("declarator")
	typeNode := node.ChildByFieldName("type")
	if nameNode == nil || typeNode == nil {
		return
	}
	name := nodeText(nameNode, src)
	if strings.ContainsAny(name, "(<: ") {
		return
	}
	target := stripTemplateArgs(nodeText(typeNode, src))
	if name == "" || target == "" || name == target {
		return
	}
	*classes = append(*classes, model.ClassInfo{
		ClassName: name, Namespace: namespaceOf(node, src), BaseClasses: []string{target},
		SymbolType: model.SymbolStruct, Line: int(node.StartPoint().Row) + 1,
		RangeStart: int(node.StartByte()), RangeEnd: int(node.EndByte()),
	})
}

func stripTemplateArgs(s string) string {
	if idx := strings.Index(s, "<"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// appendBaseClass attaches a base-class name to the most recently captured
// class when this node's byte offset lies inside that class's range, and
// drops it otherwise; earlier classes are not checked, matching the
// original scanner's "classes.last_mut()" heuristic.
func appendBaseClass(classes []model.ClassInfo, node *sitter.Node, src []byte) {
	if len(classes) == 0 {
		return
	}
	cls := &classes[len(classes)-1]
	start := int(node.StartByte())
	if start < cls.RangeStart || start > cls.RangeEnd {
		return
	}
	name := nodeText(node, src)
	if idx := strings.LastIndex(name, "::"); idx >= 0 {
		name = name[idx+2:]
	}
	if name != cls.ClassName {
		cls.BaseClasses = append(cls.BaseClasses, name)
	}
}

func buildMember(nameNode, defNode *sitter.Node, memType model.MemberType, src []byte) (pendingMember, bool) {
	if defNode == nil {
		defNode = nameNode
	}
	rawName := nodeText(nameNode, src)
	cleanName := cleanFuncName(rawName)
	switch cleanName {
	case "", "virtual", "static", "void", "const":
		return pendingMember{}, false
	}

	defText := nodeText(defNode, src)

	var flags []string
	macro := precedingMacroName(topStatement(defNode), src)
	switch macro {
	case "UFUNCTION":
		flags = append(flags, "UFUNCTION")
	case "UPROPERTY":
		flags = append(flags, "UPROPERTY")
	}
	if strings.Contains(defText, "virtual") {
		flags = append(flags, "virtual")
	}
	if strings.Contains(defText, "static") {
		flags = append(flags, "static")
	}
	if strings.Contains(defText, "override") {
		flags = append(flags, "override")
	}

	access := model.AccessPublic
	if enclosing := enclosingAccess(defNode, src); enclosing != "" {
		access = enclosing
	}
	isStatic := strings.Contains(defText, "static")

	var returnType, detail string
	if idx := strings.Index(defText, cleanName); idx >= 0 {
		prefix := defText[:idx]
		if end := strings.LastIndex(prefix, ")"); end >= 0 {
			prefix = prefix[end+1:]
		}
		returnType = cleanTypeString(prefix)
	}
	if memType == model.MemberFunction {
		if params := findChildByType(defNode, "parameter_list"); params != nil {
			detail = nodeText(params, src)
		}
	}

	return pendingMember{
		info: model.MemberInfo{
			Name: cleanName, MemType: memType, Flags: strings.Join(flags, " "),
			Access: access, Detail: detail, ReturnType: returnType, IsStatic: isStatic,
			LineNumber: int(nameNode.StartPoint().Row) + 1,
		},
		start: int(defNode.StartByte()), end: int(defNode.EndByte()),
	}, true
}

// topStatement walks up to the nearest statement-level ancestor, since the
// preceding UFUNCTION()/UPROPERTY() macro call is always a sibling of the
// whole declaration, not of an inner declarator.
func topStatement(node *sitter.Node) *sitter.Node {
	for cur := node; cur != nil; cur = cur.Parent() {
		switch cur.Type() {
		case "field_declaration", "declaration", "function_definition":
			return cur
		}
	}
	return node
}

// enclosingAccess scans backward through the containing field-declaration
// list for the most recent access_specifier label (§4.2's access-specifier
// walk; this piece has no original_source ancestor in scanner.rs, built
// from the written algorithm directly).
func enclosingAccess(node *sitter.Node, src []byte) model.Access {
	stmt := topStatement(node)
	if stmt.Parent() == nil {
		return ""
	}
	if strings.Contains(nodeText(stmt, src), "::") && stmt.Type() == "function_definition" {
		if decl := stmt.ChildByFieldName("declarator"); decl != nil && strings.Contains(nodeText(decl, src), "::") {
			return model.AccessImpl
		}
	}

	for cur := stmt.PrevNamedSibling(); cur != nil; cur = cur.PrevNamedSibling() {
		if cur.Type() == "access_specifier" {
			switch nodeText(cur, src) {
			case "public":
				return model.AccessPublic
			case "protected":
				return model.AccessProtected
			case "private":
				return model.AccessPrivate
			}
		}
	}
	return model.AccessPublic
}

// assignMembers attaches each pending member to its smallest enclosing
// class by byte range, mirroring scanner.rs's min-size containment scan.
func assignMembers(classes []model.ClassInfo, members []pendingMember) {
	for _, m := range members {
		best := -1
		bestSize := -1
		for i, cls := range classes {
			if m.start >= cls.RangeStart && m.end <= cls.RangeEnd {
				size := cls.RangeEnd - cls.RangeStart
				if bestSize == -1 || size < bestSize {
					bestSize = size
					best = i
				}
			}
		}
		if best >= 0 {
			classes[best].Members = append(classes[best].Members, m.info)
		}
	}
}
