// Command asmgen generates the unrolled prime and probe routines of the
// cache side-channel library.
package main

import "github.com/sarchlab/asmgen/asmgen/cmd"

func main() {
	cmd.Execute()
}
