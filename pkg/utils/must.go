package utils

func Must[T any](in T, err error) T {
	if err != nil {
		panic(err)
	}
	return in
}

// Check panics on a startup step that only reports an error.
func Check(err error) {
	if err != nil {
		panic(err)
	}
}
