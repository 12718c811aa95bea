package main

import (
	. "github.com/saylorsolutions/modmake"
)

const (
	dashlockVersion = "0.1.0"
)

func main() {
	b := NewBuild()
	b.Generate().DependsOnRunner("tidy", "", Go().ModTidy())

	dashlock := NewAppBuild("dashlock", "cmd/dashlock", dashlockVersion)
	dashlock.Build(func(gb *GoBuild) {
		gb.
			StripDebugSymbols().
			SetVariable("main", "version", dashlockVersion).
			CgoEnabled(false)
	})
	dashlock.Variant("windows", "amd64")
	dashlock.Variant("linux", "amd64")
	dashlock.Variant("linux", "arm64")
	dashlock.Variant("darwin", "amd64")
	dashlock.Variant("darwin", "arm64")
	b.ImportApp(dashlock)

	b.Execute()
}
