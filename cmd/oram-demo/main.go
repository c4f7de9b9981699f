package main

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	oram "github.com/etclab/oram-go"
)

const (
	success = 0
	failure = 1
)

func main() {
	os.Exit(run())
}

func run() int {

	// Parse the command line arguments.
	var (
		flagCapacity uint64
		flagLevel    string
	)

	pflag.Uint64VarP(&flagCapacity, "capacity", "c", 1024, "number of uint64 blocks to store (power of two)")
	pflag.StringVarP(&flagLevel, "level", "l", "info", "log output level")

	pflag.Parse()

	// Initialize the logger.
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(flagLevel)
	if err != nil {
		log.Error().Str("level", flagLevel).Err(err).Msg("could not parse log level")
		return failure
	}
	log = log.Level(level)

	// Initialize the oblivious RAM.
	o, err := oram.NewWithConfig(log, oram.Word(0), flagCapacity, rand.Reader, oram.DefaultConfig())
	if err != nil {
		log.Error().Uint64("capacity", flagCapacity).Err(err).Msg("could not create oram")
		return failure
	}

	fmt.Printf("oblivious RAM storing %d uint64 values\n", flagCapacity)
	fmt.Println("commands: r <address> | w <address> <value> | q")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {

		case "q":
			return success

		case "r":
			if len(fields) != 2 {
				fmt.Println("usage: r <address>")
				continue
			}
			address, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				fmt.Println("expected a uint64 address")
				continue
			}
			value, err := o.Read(address, rand.Reader)
			if err != nil {
				log.Error().Uint64("address", address).Err(err).Msg("could not read block")
				continue
			}
			fmt.Printf("value at %d is %d\n", address, uint64(value))

		case "w":
			if len(fields) != 3 {
				fmt.Println("usage: w <address> <value>")
				continue
			}
			address, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				fmt.Println("expected a uint64 address")
				continue
			}
			value, err := strconv.ParseUint(fields[2], 10, 64)
			if err != nil {
				fmt.Println("expected a uint64 value")
				continue
			}
			previous, err := o.Write(address, oram.Word(value), rand.Reader)
			if err != nil {
				log.Error().Uint64("address", address).Err(err).Msg("could not write block")
				continue
			}
			fmt.Printf("wrote %d to %d (was %d)\n", value, address, uint64(previous))

		default:
			fmt.Println("commands: r <address> | w <address> <value> | q")
		}
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("could not read input")
		return failure
	}

	return success
}
