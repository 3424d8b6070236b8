package builder

import (
	"fmt"
	"strings"
)

// assemble links the whole tree into one program: declarations, word
// definitions, initialization, then the root word in an endless loop.
func assemble(root FormBuilder) string {
	var sb strings.Builder
	sb.WriteString("input events\ninput data\n")
	sb.WriteString(root.VMOutput())
	sb.WriteString("\n")
	sb.WriteString(root.VMFunc())
	sb.WriteString("\n")
	walkBuilders(root, func(n FormBuilder) {
		sb.WriteString(n.vmInit())
	})
	fmt.Fprintf(&sb, "begin %s again\n", root.VMFuncName())
	return sb.String()
}
