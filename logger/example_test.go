package logger

import (
	"log"
	"os"
)

func ExampleLogger_Info() {
	l := New(log.New(os.Stdout, "", 0), DEBUG)

	// Consecutive arguments after the message are treated as key value pairs.
	l.Info("message", "key", "value")

	// Output:
	// status=info message key=value
}
