package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/casefile/internal/testsupport"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	var withRedis bool
	flag.BoolVar(&withRedis, "redis", false, "also start redis for the shared rate limiter")
	flag.Parse()

	usage := `
Run the casefile testcontainers with the environment variables from the .env file.

Usage:

testcontainers [-h] [-redis] [-f ENV_FILE_PATH]

ENV_FILE_PATH: path to the .env file

example
  testcontainers -redis -f /path/to/something/.env
`
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	} else {
		log.Printf("No environment file specified, using current environment variables\n")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGTSTP, syscall.SIGQUIT)

	started := make(chan *testsupport.Containers, 1)
	go func() {
		containers, err := testsupport.StartDatabase(nil)
		if err != nil {
			log.Fatalf("Failed to start database: %v\n", err)
		}
		started <- containers

		if withRedis {
			if err := containers.StartRedis(nil); err != nil {
				log.Printf("Failed to start redis: %v\n", err)
				sigs <- syscall.SIGTERM
				return
			}
		}
		if err := containers.StartServer(nil); err != nil {
			log.Printf("Failed to start casefile: %v\n", err)
			sigs <- syscall.SIGTERM
			return
		}
		log.Printf("casefile testcontainers started successfully\n")
	}()

	sig := <-sigs
	log.Printf("\nReceived signal: %v, terminating test containers...\n", sig)
	select {
	case containers := <-started:
		containers.Terminate(nil)
	default:
	}
}
