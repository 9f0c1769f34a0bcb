package scan

import (
	"fmt"

	"github.com/dop251/goja"
)

// assessJavaScript compiles (never runs) a script payload and reports
// whether it is syntactically valid. Malware droppers frequently carry
// fragments that only become valid after string assembly, so a syntax
// error is itself a useful signal.
func assessJavaScript(src string) string {
	if src == "" {
		return "empty script"
	}
	if _, err := goja.Compile("payload.js", src, false); err != nil {
		return fmt.Sprintf("syntax error: %v", err)
	}
	return "valid javascript"
}
