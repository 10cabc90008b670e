package cli

import (
	"fmt"
	"strconv"
	"strings"
)

type lineArgError struct {
	arg string
}

func (e lineArgError) Error() string {
	return fmt.Sprintf("invalid line number: %q (want a positive integer)", e.arg)
}

func errLineArg(arg string) error {
	return lineArgError{arg: arg}
}

func parseLine(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 {
		return 0, errLineArg(arg)
	}
	return n, nil
}
