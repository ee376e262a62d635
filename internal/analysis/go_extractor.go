package analysis

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/flanksource/code-intel/models"
)

// GoExtractor extracts AST information from Go source files. The zero value
// is ready to use and the extractor is safe for concurrent use: all parse
// state is local to each Extract call.
type GoExtractor struct{}

// NewGoExtractor creates a new Go AST extractor.
func NewGoExtractor() *GoExtractor {
	return &GoExtractor{}
}

// Supports reports whether the extractor can parse the given file.
func (e *GoExtractor) Supports(path string) bool {
	return strings.HasSuffix(path, ".go")
}

// Language returns the language identifier for extracted results.
func (e *GoExtractor) Language() string {
	return "go"
}

// Extract parses Go source content and returns the declarations it contains.
// The content is parsed as given; the path is only recorded on the resulting
// nodes and used in parse error messages.
func (e *GoExtractor) Extract(filePath string, content []byte) (*models.ParseResult, error) {
	fset := token.NewFileSet()
	src, err := parser.ParseFile(fset, filePath, content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Go file %s: %w", filePath, err)
	}

	x := &goExtraction{
		fset:        fset,
		filePath:    filePath,
		packageName: src.Name.Name,
	}

	x.addNode(&models.ASTNode{
		FilePath:    filePath,
		PackageName: x.packageName,
		NodeType:    models.NodeTypePackage,
		StartLine:   fset.Position(src.Name.Pos()).Line,
	})

	for _, imp := range src.Imports {
		x.imports = append(x.imports, strings.Trim(imp.Path.Value, `"`))
	}

	for _, decl := range src.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			x.extractGenDecl(d)
		case *ast.FuncDecl:
			x.extractFuncDecl(d)
		}
	}

	return &models.ParseResult{
		FilePath: filePath,
		Language: e.Language(),
		Nodes:    x.nodes,
		Imports:  x.imports,
	}, nil
}

// goExtraction holds per-file state while walking declarations.
type goExtraction struct {
	fset        *token.FileSet
	filePath    string
	packageName string
	nodes       []*models.ASTNode
	imports     []string
}

func (x *goExtraction) addNode(node *models.ASTNode) {
	x.nodes = append(x.nodes, node)
}

func (x *goExtraction) span(node ast.Node) (start, end, lines int) {
	startPos := x.fset.Position(node.Pos())
	endPos := x.fset.Position(node.End())
	return startPos.Line, endPos.Line, endPos.Line - startPos.Line + 1
}

// extractGenDecl processes general declarations (types, variables, constants)
func (x *goExtraction) extractGenDecl(decl *ast.GenDecl) {
	for _, spec := range decl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			x.extractTypeSpec(s)
		case *ast.ValueSpec:
			x.extractValueSpec(s)
		}
	}
}

func (x *goExtraction) extractTypeSpec(spec *ast.TypeSpec) {
	start, end, lines := x.span(spec)
	x.addNode(&models.ASTNode{
		FilePath:    x.filePath,
		PackageName: x.packageName,
		TypeName:    spec.Name.Name,
		NodeType:    models.NodeTypeType,
		StartLine:   start,
		EndLine:     end,
		LineCount:   lines,
	})

	if st, ok := spec.Type.(*ast.StructType); ok && st.Fields != nil {
		for _, field := range st.Fields.List {
			x.extractField(spec.Name.Name, field)
		}
	}
}

func (x *goExtraction) extractField(typeName string, field *ast.Field) {
	start, end, _ := x.span(field)
	if len(field.Names) == 0 {
		// Embedded field, named after its type.
		x.addNode(&models.ASTNode{
			FilePath:    x.filePath,
			PackageName: x.packageName,
			TypeName:    typeName,
			FieldName:   exprString(field.Type),
			NodeType:    models.NodeTypeField,
			StartLine:   start,
			EndLine:     end,
		})
		return
	}
	for _, name := range field.Names {
		x.addNode(&models.ASTNode{
			FilePath:    x.filePath,
			PackageName: x.packageName,
			TypeName:    typeName,
			FieldName:   name.Name,
			NodeType:    models.NodeTypeField,
			StartLine:   start,
			EndLine:     end,
		})
	}
}

func (x *goExtraction) extractValueSpec(spec *ast.ValueSpec) {
	for _, name := range spec.Names {
		if name.Name == "_" {
			continue
		}
		start, end, _ := x.span(spec)
		x.addNode(&models.ASTNode{
			FilePath:    x.filePath,
			PackageName: x.packageName,
			FieldName:   name.Name,
			NodeType:    models.NodeTypeVariable,
			StartLine:   start,
			EndLine:     end,
		})
	}
}

func (x *goExtraction) extractFuncDecl(decl *ast.FuncDecl) {
	start, end, lines := x.span(decl)

	node := &models.ASTNode{
		FilePath:             x.filePath,
		PackageName:          x.packageName,
		MethodName:           decl.Name.Name,
		NodeType:             models.NodeTypeMethod,
		StartLine:            start,
		EndLine:              end,
		LineCount:            lines,
		CyclomaticComplexity: cyclomaticComplexity(decl),
	}

	// Methods record their receiver type.
	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		node.TypeName = receiverTypeName(decl.Recv.List[0].Type)
	}

	if decl.Type.Params != nil {
		for _, p := range decl.Type.Params.List {
			if n := len(p.Names); n > 0 {
				node.ParameterCount += n
			} else {
				node.ParameterCount++
			}
		}
	}
	if decl.Type.Results != nil {
		for _, r := range decl.Type.Results.List {
			if n := len(r.Names); n > 0 {
				node.ReturnCount += n
			} else {
				node.ReturnCount++
			}
		}
	}

	x.addNode(node)
}

// cyclomaticComplexity approximates McCabe complexity: one plus a point per
// branching construct.
func cyclomaticComplexity(decl *ast.FuncDecl) int {
	complexity := 1
	if decl.Body == nil {
		return complexity
	}
	ast.Inspect(decl.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.IfStmt, *ast.ForStmt, *ast.RangeStmt, *ast.CaseClause, *ast.CommClause:
			complexity++
		case *ast.BinaryExpr:
			if node.Op == token.LAND || node.Op == token.LOR {
				complexity++
			}
		}
		return true
	})
	return complexity
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	}
	return ""
}

func exprString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return exprString(t.X)
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	}
	return ""
}
