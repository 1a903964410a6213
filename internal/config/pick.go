package config

// Pick resolves a config value's final setting from CLI flag, config file,
// and built-in default, in that precedence order. cliValue and fileValue
// are nil when the flag/file key was not supplied.
func Pick[T any](cliValue, fileValue *T, defaultValue T) T {
	if cliValue != nil {
		return *cliValue
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

// PickSlice resolves a []string the same way Pick does for scalars: CLI,
// then file, then default. A nil or empty cliValue falls through to file.
func PickSlice(cliValue, fileValue, defaultValue []string) []string {
	if len(cliValue) > 0 {
		return cliValue
	}
	if len(fileValue) > 0 {
		return fileValue
	}
	return defaultValue
}
