package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrNoInput = errors.New("no input video given")

// prompter asks for missing values on an interactive reader.
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

// ask prints label and returns the trimmed reply. io.EOF is returned once
// the reader is exhausted.
func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *prompter) album() (string, error) {
	album, err := p.ask("Enter Album (blank uses the file name): ")
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	return album, err
}

func (p *prompter) input() (string, error) {
	for {
		path, err := p.ask("Video file: ")
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
	}
}

// seconds re-asks until the reply is a positive integer; a blank reply
// keeps def.
func (p *prompter) seconds(def int) (int, error) {
	for {
		reply, err := p.ask(fmt.Sprintf("Seconds per clip [%d]: ", def))
		if errors.Is(err, io.EOF) {
			return def, nil
		}
		if err != nil {
			return 0, err
		}
		if reply == "" {
			return def, nil
		}

		n, err := strconv.Atoi(reply)
		if err == nil && n > 0 {
			return n, nil
		}
		fmt.Fprintf(p.out, "%q is not a positive number of seconds\n", reply)
	}
}
