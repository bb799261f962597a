package mocks

// FakeRamdisk counts restore calls.
type FakeRamdisk struct {
	Restored int
	Err      error
}

func (r *FakeRamdisk) RestoreInit() error {
	r.Restored++
	return r.Err
}

// FakeRoot records which root patch strategy was dispatched.
type FakeRoot struct {
	RW   int
	RO   int
	Argv []string
}

func (r *FakeRoot) PatchRWRoot(argv []string) error {
	r.RW++
	r.Argv = append([]string(nil), argv...)
	return nil
}

func (r *FakeRoot) PatchRORoot(argv []string) error {
	r.RO++
	r.Argv = append([]string(nil), argv...)
	return nil
}

// ExecCall records an exec attempt.
type ExecCall struct {
	Path string
	Argv []string
}

// FakeExec returns an exec function that records calls instead of replacing the process.
func FakeExec(calls *[]ExecCall) func(string, []string, []string) error {
	return func(path string, argv []string, _ []string) error {
		*calls = append(*calls, ExecCall{Path: path, Argv: append([]string(nil), argv...)})
		return nil
	}
}
