// Package process defines the domain value objects and port used to spawn
// and control an external child process. It mirrors the teacher's
// domain/process package: a plain Spec value object handed to an Executor
// port, with the infrastructure adapter doing the actual os/exec work.
package process

// Spec is the fully-resolved specification for a child process: the
// tokenized command, working directory, and merged environment. Stdout and
// stderr are always captured by the executor (unlike the teacher, which
// inherits them) because the supervisor's stream readers need the bytes.
type Spec struct {
	// Argv is the tokenized command line (see internal/application/spawner
	// for the quote-aware tokenizer that produces this).
	Argv []string
	// Dir is the working directory the child is started in.
	Dir string
	// Env is the fully merged environment (global + service + dotenv),
	// appended on top of the current process environment at exec time.
	Env map[string]string
}
