package schema

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

// Diagnostics wraps hcl.Diagnostics as queryengine.Diagnostics.
type Diagnostics struct {
	diags hcl.Diagnostics
}

func newDiagnostics(diags hcl.Diagnostics) *Diagnostics {
	return &Diagnostics{diags: diags}
}

func (d *Diagnostics) Error() string {
	return d.diags.Error()
}

func (d *Diagnostics) ErrorCount() int {
	return len(d.diags.Errs())
}

// HCL returns the underlying diagnostics.
func (d *Diagnostics) HCL() hcl.Diagnostics {
	return d.diags
}

// Render writes every diagnostic with a snippet of source.
func (d *Diagnostics) Render(source string) string {
	file, _ := hclsyntax.ParseConfig([]byte(source), queryengine.SchemaFileName, hcl.InitialPos)
	files := map[string]*hcl.File{queryengine.SchemaFileName: file}

	var out strings.Builder
	writer := hcl.NewDiagnosticTextWriter(&out, files, 0, false)
	_ = writer.WriteDiagnostics(d.diags)

	return strings.TrimRight(out.String(), "\n")
}

func errorDiagnostic(summary, detail string, subject hcl.Range) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  subject.Ptr(),
	}
}

var _ queryengine.Diagnostics = (*Diagnostics)(nil)
