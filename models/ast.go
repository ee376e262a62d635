package models

// NodeType classifies an AST node.
type NodeType = string

const (
	NodeTypePackage  NodeType = "package"
	NodeTypeType     NodeType = "type"
	NodeTypeMethod   NodeType = "method"
	NodeTypeField    NodeType = "field"
	NodeTypeVariable NodeType = "variable"
)

// ASTNode represents one declaration extracted from a source file: a package,
// type, method, field or variable, identified by its naming path.
type ASTNode struct {
	FilePath             string   `json:"file_path"`
	PackageName          string   `json:"package_name,omitempty"`
	TypeName             string   `json:"type_name,omitempty"`
	MethodName           string   `json:"method_name,omitempty"`
	FieldName            string   `json:"field_name,omitempty"`
	NodeType             NodeType `json:"node_type"`
	StartLine            int      `json:"start_line"`
	EndLine              int      `json:"end_line,omitempty"`
	LineCount            int      `json:"line_count,omitempty"`
	CyclomaticComplexity int      `json:"cyclomatic_complexity,omitempty"`
	ParameterCount       int      `json:"parameter_count,omitempty"`
	ReturnCount          int      `json:"return_count,omitempty"`
}

// Key returns the qualified name of the node within its file.
func (n *ASTNode) Key() string {
	key := n.PackageName
	if n.TypeName != "" {
		key += ":" + n.TypeName
	}
	if n.MethodName != "" {
		key += ":" + n.MethodName
	}
	if n.FieldName != "" {
		key += ":" + n.FieldName
	}
	return key
}

// ParseResult is the outcome of parsing one source file. This is the value
// stored in the AST cache; the cache itself treats it as opaque.
type ParseResult struct {
	FilePath string     `json:"file_path"`
	Language string     `json:"language"`
	Nodes    []*ASTNode `json:"nodes"`
	Imports  []string   `json:"imports,omitempty"`
}

// nodeOverhead approximates the fixed per-node cost of an ASTNode beyond its
// string fields.
const nodeOverhead = 96

// SizeEstimate approximates the in-memory footprint of the result in bytes,
// used for cache byte accounting. An estimate is enough; the cache only needs
// relative sizes to bound aggregate memory.
func (r *ParseResult) SizeEstimate() int64 {
	size := int64(len(r.FilePath) + len(r.Language))
	for _, imp := range r.Imports {
		size += int64(len(imp)) + 16
	}
	for _, n := range r.Nodes {
		size += nodeOverhead + int64(len(n.FilePath)+len(n.PackageName)+len(n.TypeName)+len(n.MethodName)+len(n.FieldName)+len(n.NodeType))
	}
	return size
}
