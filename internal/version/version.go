package version

// Version is overridden at build time via -ldflags "-X ...version.Version=v0.x.y".
var Version = "dev"
