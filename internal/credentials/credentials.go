package credentials

import (
	"bufio"
	"cses-scraper/internal/scrapers/cses"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Input is where the two credential lines come from. Fd is only consulted
// when Terminal is true.
type Input struct {
	Reader   io.Reader
	Fd       int
	Terminal bool
	// Prompts receives the prompts shown before each line, it may be nil.
	Prompts io.Writer
}

// Stdin returns the process' standard input, prompting on stderr.
func Stdin() Input {
	fd := int(os.Stdin.Fd())
	return Input{
		Reader:   os.Stdin,
		Fd:       fd,
		Terminal: term.IsTerminal(fd),
		Prompts:  os.Stderr,
	}
}

// Read reads a line of usernames then a line of passwords, both whitespace
// separated, and pairs them by index. The password line is read without
// echo when the input is a terminal.
func Read(in Input) ([]cses.Credential, error) {
	prompts := in.Prompts
	if prompts == nil || !in.Terminal {
		prompts = io.Discard
	}
	// on a terminal nothing past the first line may be buffered, the rest
	// belongs to term.ReadPassword
	var reader io.ByteReader = bufio.NewReader(in.Reader)
	if in.Terminal {
		reader = unbufferedReader{in.Reader}
	}

	fmt.Fprint(prompts, "Usernames: ")
	usernameLine, err := readLine(reader)
	if err != nil {
		return nil, fmt.Errorf("read usernames: %w", err)
	}

	fmt.Fprint(prompts, "Passwords: ")
	var passwordLine string
	if in.Terminal {
		raw, err := readPassword(in.Fd)
		fmt.Fprintln(prompts)
		if err != nil {
			return nil, fmt.Errorf("read passwords: %w", err)
		}
		passwordLine = string(raw)
	} else {
		passwordLine, err = readLine(reader)
		if err != nil {
			return nil, fmt.Errorf("read passwords: %w", err)
		}
	}

	return cses.PairCredentials(strings.Fields(usernameLine), strings.Fields(passwordLine))
}

// readLine returns the next line without its line ending, a final line
// without a newline counts. An empty input gives an empty line so that two
// empty lists are valid.
func readLine(reader io.ByteReader) (string, error) {
	var line strings.Builder
	for {
		c, err := reader.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if c == '\n' {
			break
		}
		line.WriteByte(c)
	}
	return strings.TrimRight(line.String(), "\r\n"), nil
}

// unbufferedReader reads one byte per Read call.
type unbufferedReader struct {
	r io.Reader
}

func (u unbufferedReader) ReadByte() (byte, error) {
	var buf [1]byte
	for {
		n, err := u.r.Read(buf[:])
		if n == 1 {
			return buf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
