package main

import (
	"crypto/rand"
	"math/big"
	"os"
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
		flagCapacity  uint64
		flagBlockSize int
		flagOps       int
		flagLevel     string
	)

	pflag.Uint64VarP(&flagCapacity, "capacity", "c", 1<<15, "number of blocks to store (power of two)")
	pflag.IntVarP(&flagBlockSize, "block-size", "b", 64, "block size in bytes")
	pflag.IntVarP(&flagOps, "ops", "n", 10000, "number of random accesses to time")
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
	proto := make(oram.ByteBlock, flagBlockSize)
	start := time.Now()
	o, err := oram.NewPathOram(log, proto, flagCapacity, rand.Reader, oram.DefaultConfig())
	if err != nil {
		log.Error().Uint64("capacity", flagCapacity).Err(err).Msg("could not create oram")
		return failure
	}
	log.Info().
		Uint64("capacity", flagCapacity).
		Int("block_size", flagBlockSize).
		Int("recursion_height", o.RecursionHeight()).
		Dur("elapsed", time.Since(start)).
		Msg("oram initialized")

	// Run the timed workload: random reads and writes in equal proportion.
	payload := make(oram.ByteBlock, flagBlockSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	readsBefore := o.PhysicalReadCount()
	writesBefore := o.PhysicalWriteCount()
	peak := 0

	start = time.Now()
	for i := 0; i < flagOps; i++ {
		address, err := rand.Int(rand.Reader, new(big.Int).SetUint64(flagCapacity))
		if err != nil {
			log.Error().Err(err).Msg("could not draw random address")
			return failure
		}
		if i%2 == 0 {
			_, err = o.Read(address.Uint64(), rand.Reader)
		} else {
			_, err = o.Write(address.Uint64(), payload, rand.Reader)
		}
		if err != nil {
			log.Error().Uint64("address", address.Uint64()).Err(err).Msg("access failed")
			return failure
		}
		if occ := o.StashOccupancy(); occ > peak {
			peak = occ
		}
	}
	elapsed := time.Since(start)

	log.Info().
		Int("ops", flagOps).
		Dur("elapsed", elapsed).
		Float64("ops_per_sec", float64(flagOps)/elapsed.Seconds()).
		Uint64("bucket_reads", o.PhysicalReadCount()-readsBefore).
		Uint64("bucket_writes", o.PhysicalWriteCount()-writesBefore).
		Int("peak_stash_occupancy", peak).
		Msg("benchmark complete")

	return success
}
