package core

import (
	"testing"

	"elwinator/testutil"
)

func TestBlobCoreHasNoModuleImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ModuleImportForbidden("elwinator"), "drivers import core, never the reverse")
}
