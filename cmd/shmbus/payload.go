package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/GriffinCanCode/shmbus/internal/codec"
)

// payloadFlags selects how payload bytes are framed and rendered
type payloadFlags struct {
	frame int
	zstd  bool
	hex   bool
}

func (p *payloadFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&p.frame, "frame", 0, "length-prefixed frame size in bytes (0 writes the payload as is)")
	fs.BoolVar(&p.zstd, "zstd", false, "zstd-compress the payload")
	fs.BoolVar(&p.hex, "hex", false, "payload text is hex encoded")
}

// codec builds the byte codec the flags describe
func (p *payloadFlags) codec() (codec.Codec[[]byte], error) {
	c := codec.Bytes()
	if p.zstd {
		z, err := codec.Zstd(c)
		if err != nil {
			return nil, err
		}
		c = z
	}
	if p.frame > 0 {
		if p.frame <= codec.FrameHeader {
			return nil, usageErr("-frame must exceed %d bytes", codec.FrameHeader)
		}
		c = codec.Fixed(c, p.frame)
	}
	return c, nil
}

// read returns the payload from text, a file or stdin, in that order
func (p *payloadFlags) read(text, file string, stdin io.Reader) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch {
	case text != "":
		raw = []byte(text)
	case file != "":
		raw, err = os.ReadFile(file)
	default:
		raw, err = io.ReadAll(stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if !p.hex {
		return raw, nil
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, usageErr("payload is not hex: %v", err)
	}
	return decoded, nil
}

// write renders a delivered payload
func (p *payloadFlags) write(w io.Writer, payload []byte) error {
	if p.hex {
		_, err := fmt.Fprintln(w, hex.EncodeToString(payload))
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}
