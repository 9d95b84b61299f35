// Package testing is imported for its side effects by test files:
//
//	import (
//	  _ "liyu1981.xyz/mobilealerts-proxy/pkg/testing"
//	)
//
// It moves to the project root, so relative paths resolve the same way as for
// the server, and sends test logs to a temp directory instead of ./logs.
package testing

import (
	"os"
	"path"
	"path/filepath"
	"runtime"
)

// same keys as common.EnvKeyGoEnv and common.EnvKeyMALogDir, common imports
// this package from its own tests
const (
	envGoEnv  = "GO_ENV"
	envLogDir = "MA_LOG_DIR"
)

func init() {
	_, filename, _, _ := runtime.Caller(0)
	root := path.Join(path.Dir(filename), "..", "..")
	if err := os.Chdir(root); err != nil {
		panic(err)
	}

	setDefault(envGoEnv, "test")
	setDefault(envLogDir, filepath.Join(os.TempDir(), "mobilealerts-proxy-test-logs"))
}

func setDefault(key, value string) {
	if _, ok := os.LookupEnv(key); ok {
		return
	}
	if err := os.Setenv(key, value); err != nil {
		panic(err)
	}
}
