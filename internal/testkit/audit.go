package testkit

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// AuditReport - результат статического аудита интеракций.
// Пустые Orphans, Dangling и Warnings означают полное покрытие:
// каждый SourceID из кода имеет резолвер и наоборот.
type AuditReport struct {
	// Used - идентификаторы, найденные в дескрипторах интеракций.
	Used []string
	// Orphans - используются в коде, но резолвер не зарегистрирован.
	// Каждый элемент - гарантированный unregistered_resolver в рантайме.
	Orphans []string
	// Dangling - резолвер зарегистрирован, но в коде идентификатор
	// не встречается: мертвый код или динамическое создание.
	Dangling []string
	// Warnings - места, где SourceID задан выражением, которое аудит
	// не смог вычислить статически.
	Warnings []string
}

// Clean сообщает, что аудит не нашел проблем.
func (r AuditReport) Clean() bool {
	return len(r.Orphans) == 0 && len(r.Dangling) == 0 && len(r.Warnings) == 0
}

// AuditInteractions обходит Go-исходники игры (рекурсивно, без _test.go)
// и сверяет найденные SourceID дескрипторов интеракций со списком
// зарегистрированных резолверов.
//
// Статически вычисляются строковые литералы и строковые константы
// уровня пакета. Динамический SourceID попадает в Warnings: такой код
// обязан покрываться рантайм-тестом.
func AuditInteractions(root string, registered []string) (AuditReport, error) {
	var report AuditReport

	fset := token.NewFileSet()
	used := make(map[string]bool)

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		file, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		auditFile(fset, file, used, &report.Warnings)
		return nil
	})
	if err != nil {
		return report, err
	}

	regSet := make(map[string]bool, len(registered))
	for _, id := range registered {
		regSet[id] = true
	}

	for id := range used {
		report.Used = append(report.Used, id)
		if !regSet[id] {
			report.Orphans = append(report.Orphans, id)
		}
	}
	for _, id := range registered {
		if !used[id] {
			report.Dangling = append(report.Dangling, id)
		}
	}

	sort.Strings(report.Used)
	sort.Strings(report.Orphans)
	sort.Strings(report.Dangling)
	sort.Strings(report.Warnings)
	return report, nil
}

// auditFile собирает SourceID из одного файла.
func auditFile(fset *token.FileSet, file *ast.File, used map[string]bool, warnings *[]string) {
	consts := stringConsts(file)

	ast.Inspect(file, func(n ast.Node) bool {
		lit, ok := n.(*ast.CompositeLit)
		if !ok || !isInteractionDescriptor(lit.Type) {
			return true
		}
		for _, elt := range lit.Elts {
			kv, ok := elt.(*ast.KeyValueExpr)
			if !ok {
				continue
			}
			key, ok := kv.Key.(*ast.Ident)
			if !ok || key.Name != "SourceID" {
				continue
			}
			if id, ok := resolveString(kv.Value, consts); ok {
				used[id] = true
			} else {
				pos := fset.Position(kv.Value.Pos())
				*warnings = append(*warnings, fmt.Sprintf(
					"%s:%d: dynamic SourceID expression", pos.Filename, pos.Line))
			}
		}
		return true
	})
}

// stringConsts собирает строковые константы уровня пакета.
func stringConsts(file *ast.File) map[string]string {
	out := make(map[string]string)
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, name := range vs.Names {
				if i >= len(vs.Values) {
					break
				}
				if v, ok := literalString(vs.Values[i]); ok {
					out[name.Name] = v
				}
			}
		}
	}
	return out
}

// isInteractionDescriptor: engine.InteractionDescriptor или локальный
// алиас InteractionDescriptor.
func isInteractionDescriptor(expr ast.Expr) bool {
	switch t := expr.(type) {
	case *ast.SelectorExpr:
		return t.Sel.Name == "InteractionDescriptor"
	case *ast.Ident:
		return t.Name == "InteractionDescriptor"
	}
	return false
}

// resolveString вычисляет строковое выражение: литерал или константа.
func resolveString(expr ast.Expr, consts map[string]string) (string, bool) {
	if v, ok := literalString(expr); ok {
		return v, true
	}
	if ident, ok := expr.(*ast.Ident); ok {
		v, ok := consts[ident.Name]
		return v, ok
	}
	return "", false
}

func literalString(expr ast.Expr) (string, bool) {
	lit, ok := expr.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	v, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return v, true
}
