package python

import (
	"testing"

	"github.com/RocketMan234/chainsaw/internal/model"
	"github.com/stretchr/testify/require"
)

func extract(t *testing.T, src string) []model.RawImport {
	t.Helper()
	b := New()
	imports, err := b.Extract("mod.py", []byte(src))
	require.NoError(t, err)
	return imports
}

func TestTopLevelImportIsStatic(t *testing.T) {
	imports := extract(t, "import os\n")
	require.Len(t, imports, 1)
	require.Equal(t, "os", imports[0].Specifier)
	require.Equal(t, model.Static, imports[0].Kind)
}

func TestFromImportIsStatic(t *testing.T) {
	imports := extract(t, "from collections import OrderedDict\n")
	require.Len(t, imports, 1)
	require.Equal(t, model.Static, imports[0].Kind)
}

func TestRelativeImportCountsDots(t *testing.T) {
	imports := extract(t, "from ..pkg import thing\n")
	require.Len(t, imports, 1)
	require.Equal(t, "..pkg", imports[0].Specifier)
}

func TestBareDotRelativeImport(t *testing.T) {
	imports := extract(t, "from . import sub\n")
	require.Len(t, imports, 1)
	require.Equal(t, ".sub", imports[0].Specifier)
}

func TestBareDotRelativeImportMultipleNames(t *testing.T) {
	imports := extract(t, "from .. import a, b\n")
	require.Len(t, imports, 2)
	require.Equal(t, "..a", imports[0].Specifier)
	require.Equal(t, "..b", imports[1].Specifier)
}

func TestImportInsideFunctionIsDynamic(t *testing.T) {
	src := "def f():\n    import heavy\n"
	imports := extract(t, src)
	require.Len(t, imports, 1)
	require.Equal(t, model.Dynamic, imports[0].Kind)
}

func TestImportInsideIfIsDynamic(t *testing.T) {
	src := "if cond:\n    import heavy\n"
	imports := extract(t, src)
	require.Len(t, imports, 1)
	require.Equal(t, model.Dynamic, imports[0].Kind)
}

func TestImportGuardedByTypeCheckingIsTypeOnly(t *testing.T) {
	src := "from typing import TYPE_CHECKING\nif TYPE_CHECKING:\n    import heavy\n"
	imports := extract(t, src)
	require.Len(t, imports, 2)
	require.Equal(t, model.Static, imports[0].Kind) // the TYPE_CHECKING import itself
	require.Equal(t, "heavy", imports[1].Specifier)
	require.Equal(t, model.TypeOnly, imports[1].Kind)
}

func TestImportGuardedByQualifiedTypeCheckingIsTypeOnly(t *testing.T) {
	src := "import typing\nif typing.TYPE_CHECKING:\n    import heavy\n"
	imports := extract(t, src)
	require.Len(t, imports, 2)
	require.Equal(t, model.TypeOnly, imports[1].Kind)
}

func TestImportInTryIsDynamic(t *testing.T) {
	src := "try:\n    import optional_dep\nexcept ImportError:\n    optional_dep = None\n"
	imports := extract(t, src)
	require.Len(t, imports, 1)
	require.Equal(t, model.Dynamic, imports[0].Kind)
}

func TestAliasedImport(t *testing.T) {
	imports := extract(t, "import numpy as np\n")
	require.Len(t, imports, 1)
	require.Equal(t, "numpy", imports[0].Specifier)
}
