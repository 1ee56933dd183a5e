package provider

// RuntimeBuilt reports whether the binary was compiled with the real
// inference runtime ('llama' build tag).
func RuntimeBuilt() bool { return runtimeBuilt }
