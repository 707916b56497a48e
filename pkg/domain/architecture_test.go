package domain

import (
	"testing"

	"elwinator/testutil"
)

func TestDomainImportsNoHostCode(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ModuleImportForbidden("elwinator"), "pkg/domain is the shared model")
}
