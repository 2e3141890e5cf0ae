package workload

import (
	"fmt"
	"strings"

	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
)

// WrapCommands joins cmds into a single command line for the node's shell.
// Linux commands run under bash and stop at the first failure; Windows
// commands run sequentially under cmd.exe.
func WrapCommands(os batch.OSType, cmds ...string) string {
	if os == batch.OSWindows {
		return fmt.Sprintf(`cmd.exe /c "%s"`, strings.Join(cmds, "&"))
	}
	return fmt.Sprintf("/bin/bash -c 'set -e; set -o pipefail; %s; wait'", strings.Join(cmds, ";"))
}

// AdminIdentity runs a task as a pool-scoped auto-user with admin rights.
func AdminIdentity() *batch.UserIdentity {
	return &batch.UserIdentity{AutoUser: &batch.AutoUserSpecification{
		Scope:          "pool",
		ElevationLevel: batch.ElevationAdmin,
	}}
}
