package buildinfo

import "runtime/debug"

// Set with -ldflags "-X toptw/internal/buildinfo.Version=..." at release time.
var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    info := map[string]string{
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
    }
    if bi, ok := debug.ReadBuildInfo(); ok {
        info["go"] = bi.GoVersion
        if Commit == "" {
            for _, s := range bi.Settings {
                if s.Key == "vcs.revision" { info["commit"] = s.Value }
            }
        }
    }
    return info
}

// String is the one-line form printed by the CLI.
func String() string {
    i := Info()
    s := "toptw " + i["version"]
    if c := i["commit"]; c != "" {
        if len(c) > 12 { c = c[:12] }
        s += " (" + c + ")"
    }
    if g := i["go"]; g != "" { s += " " + g }
    return s
}
