package chunker

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// chunkAST emits one chunk per semantic node of interest. Only Go has
// an in-process parser; other languages report no AST support and fall
// through to the regex strategy. Parse panics and errors are swallowed
// so the dispatcher can fall back.
func (c *Chunker) chunkAST(text, language string) (chunks []Chunk) {
	if language != "go" {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			chunks = nil
		}
	}()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "src.go", text, parser.ParseComments)
	if err != nil {
		return nil
	}

	imports := make([]string, 0, len(file.Imports))
	for _, imp := range file.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, `"`))
	}

	lines := strings.Split(text, "\n")

	emit := func(node ast.Node, chunkType, name string) {
		start := fset.Position(node.Pos())
		end := fset.Position(node.End())
		if start.Line < 1 || end.Line > len(lines) {
			return
		}

		body := strings.Join(lines[start.Line-1:end.Line], "\n")
		if len(strings.TrimSpace(body)) < minCodeChunkBytes {
			return
		}

		chunks = append(chunks, Chunk{
			Text:      body,
			Type:      chunkType,
			Name:      name,
			LineStart: start.Line,
			LineEnd:   end.Line,
			Imports:   imports,
		})
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			chunkType := TypeFunction
			name := d.Name.Name
			if d.Recv != nil && len(d.Recv.List) > 0 {
				chunkType = TypeMethod
				name = receiverName(d.Recv.List[0].Type) + "." + name
			}
			emit(d, chunkType, name)

		case *ast.GenDecl:
			switch d.Tok {
			case token.TYPE:
				for _, spec := range d.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					emit(d, typeSpecKind(ts), ts.Name.Name)
				}
			case token.CONST:
				if len(d.Specs) > 0 {
					emit(d, TypeConstant, constBlockName(d))
				}
			}
		}
	}

	return chunks
}

// typeSpecKind classifies a Go type declaration.
func typeSpecKind(ts *ast.TypeSpec) string {
	if ts.Assign.IsValid() {
		return TypeTypeAlias
	}
	switch ts.Type.(type) {
	case *ast.StructType:
		return TypeStruct
	case *ast.InterfaceType:
		return TypeInterface
	default:
		return TypeTypeAlias
	}
}

// receiverName extracts the receiver type name from a method receiver.
func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	default:
		return ""
	}
}

// constBlockName names a const block after its first identifier.
func constBlockName(d *ast.GenDecl) string {
	for _, spec := range d.Specs {
		if vs, ok := spec.(*ast.ValueSpec); ok && len(vs.Names) > 0 {
			return vs.Names[0].Name
		}
	}
	return "const"
}
