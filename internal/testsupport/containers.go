// Package testsupport starts the casefile dependencies in containers.
// It backs the database integration tests and the standalone cmd/testcontainers executable.
// Expects environment variables to be loaded from .env files.
package testsupport

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/localnerve/casefile/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	serverImage = "casefile-test:latest"
	redisAlias  = "redis"
	redisPort   = nat.Port("6379/tcp")
)

type Containers struct {
	Network       *testcontainers.DockerNetwork
	DB            testcontainers.Container
	Redis         testcontainers.Container
	Server        testcontainers.Container
	ServerBuilder testcontainers.Container

	dbType     string
	dbPort     nat.Port
	serverPort nat.Port
}

// Terminate stops every started container, newest first, and removes the network.
func (tc *Containers) Terminate(t *testing.T) {
	ctx := context.Background()
	for _, c := range []struct {
		name      string
		container testcontainers.Container
	}{
		{"casefile", tc.Server},
		{"casefile builder", tc.ServerBuilder},
		{"redis", tc.Redis},
		{"database", tc.DB},
	} {
		if c.container == nil {
			continue
		}
		if err := c.container.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate %s: %v", c.name, err)
		}
	}
	if tc.Network != nil {
		if err := tc.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

// StartDatabase creates the network and the database container named by DB_IMAGE.
// The database is reachable inside the network at DB_HOST:DB_PORT.
func StartDatabase(t *testing.T) (*Containers, error) {
	ctx := context.Background()
	tc := &Containers{dbType: strings.ToLower(os.Getenv("DB_TYPE"))}

	nw, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}
	tc.Network = nw

	tcpDbPort, err := nat.NewPort("tcp", os.Getenv("DB_PORT"))
	if err != nil {
		tc.Terminate(t)
		return nil, fmt.Errorf("failed to create DB port: %w", err)
	}
	tc.dbPort = tcpDbPort

	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        os.Getenv("DB_IMAGE"),
			ExposedPorts: []string{string(tcpDbPort)},
			Env:          dbInitEnv(tc.dbType),
			WaitingFor:   wait.ForListeningPort(tcpDbPort).WithStartupTimeout(60 * time.Second),
			Networks:     []string{nw.Name},
			NetworkAliases: map[string][]string{
				nw.Name: {os.Getenv("DB_HOST")},
			},
		},
		Started: true,
	})
	if err != nil {
		tc.Terminate(t)
		return nil, fmt.Errorf("failed to start database: %w", err)
	}
	tc.DB = dbContainer

	switch tc.dbType {
	case "mysql", "mariadb":
		host, _ := dbContainer.Host(ctx)
		port, _ := dbContainer.MappedPort(ctx, tcpDbPort)
		if err := mysqlInit(host, port); err != nil {
			tc.Terminate(t)
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	logMessage(t, "%s container started", tc.dbType)
	return tc, nil
}

// StartRedis adds a redis container to the network for the shared rate limiter.
func (tc *Containers) StartRedis(t *testing.T) error {
	ctx := context.Background()
	redisImage := os.Getenv("REDIS_IMAGE")
	if redisImage == "" {
		redisImage = "redis:7-alpine"
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImage,
			ExposedPorts: []string{string(redisPort)},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
			Networks:     []string{tc.Network.Name},
			NetworkAliases: map[string][]string{
				tc.Network.Name: {redisAlias},
			},
		},
		Started: true,
	})
	if err != nil {
		return fmt.Errorf("failed to start redis: %w", err)
	}
	tc.Redis = redisContainer

	addr, err := tc.RedisAddr(ctx)
	if err != nil {
		return err
	}
	logMessage(t, "REDIS_ADDR=%s", addr)
	return nil
}

// StartServer runs the casefile image against the started database, building it when absent.
func (tc *Containers) StartServer(t *testing.T) error {
	ctx := context.Background()

	exists, err := imageExists(ctx, serverImage)
	if err != nil {
		return fmt.Errorf("failed to check if image exists: %w", err)
	}

	portNumber := os.Getenv("PORT")
	tcpServerPort, err := nat.NewPort("tcp", portNumber)
	if err != nil {
		return fmt.Errorf("failed to create casefile port: %w", err)
	}

	debugContainer := os.Getenv("DEBUG_CONTAINER") == "true"
	exposedPorts := []string{string(tcpServerPort)}
	if debugContainer {
		exposedPorts = append(exposedPorts, "2345/tcp")
	}

	env := map[string]string{
		"DB_TYPE":                  tc.dbType,
		"DB_HOST":                  os.Getenv("DB_HOST"),
		"DB_PORT":                  os.Getenv("DB_PORT"),
		"DB_DATABASE":              os.Getenv("DB_DATABASE"),
		"DB_USER":                  os.Getenv("DB_USER"),
		"DB_PASSWORD":              os.Getenv("DB_PASSWORD"),
		"DB_CONNECTION_LIMIT":      os.Getenv("DB_CONNECTION_LIMIT"),
		"BOOTSTRAP_OWNER_EMAIL":    os.Getenv("BOOTSTRAP_OWNER_EMAIL"),
		"BOOTSTRAP_OWNER_PASSWORD": os.Getenv("BOOTSTRAP_OWNER_PASSWORD"),
		"PORT":                     portNumber,
	}
	if tc.Redis != nil {
		env["REDIS_ADDR"] = fmt.Sprintf("%s:%s", redisAlias, redisPort.Port())
	}

	waitStrategy := wait.Strategy(wait.ForHTTP("/metrics").WithPort(tcpServerPort).WithStartupTimeout(30 * time.Second))
	if debugContainer {
		waitStrategy = wait.ForLog("API server listening at: [::]:2345").WithStartupTimeout(5 * time.Minute)
	}

	request := testcontainers.ContainerRequest{
		ExposedPorts: exposedPorts,
		Env:          env,
		HostConfigModifier: func(hostConfig *container.HostConfig) {
			if debugContainer {
				hostConfig.PortBindings = nat.PortMap{
					"2345/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "2345"}},
				}
				hostConfig.CapAdd = []string{"SYS_PTRACE"}
				hostConfig.SecurityOpt = []string{"apparmor:unconfined"}
			}
		},
		WaitingFor: waitStrategy,
		Networks:   []string{tc.Network.Name},
	}
	if debugContainer {
		request.Entrypoint = []string{
			"/usr/local/bin/dlv", "--listen=:2345", "--headless=true",
			"--api-version=2", "--accept-multiclient", "exec", "./casefile",
		}
	}

	if exists {
		logMessage(t, "Image %s exists, reusing...", serverImage)
		request.Image = serverImage
	} else {
		logMessage(t, "Image %s does not exist, building...", serverImage)
		fromDockerfile, err := tc.buildServer(ctx, debugContainer)
		if err != nil {
			return err
		}
		request.FromDockerfile = fromDockerfile
	}

	server, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: request,
		Started:          true,
	})
	if err != nil {
		return fmt.Errorf("failed to start casefile: %w", err)
	}
	tc.Server = server
	tc.serverPort = tcpServerPort

	host, _ := server.Host(ctx)
	port, _ := server.MappedPort(ctx, tcpServerPort)
	logMessage(t, "BASE_URL=%s:%s", host, port.Port())
	return nil
}

// buildServer builds the builder stage once and returns the runtime stage request.
func (tc *Containers) buildServer(ctx context.Context, debug bool) (testcontainers.FromDockerfile, error) {
	sessionID := uuid.New().String()
	buildArgs := map[string]*string{
		"RESOURCE_REAPER_SESSION_ID": &sessionID,
	}
	if debug {
		debugValue := "true"
		buildArgs["DEBUG"] = &debugValue
	}

	buildContext := os.Getenv("TESTCONTAINERS_BUILD_CONTEXT")
	if buildContext == "" {
		buildContext = "../.."
	}

	builder, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			FromDockerfile: testcontainers.FromDockerfile{
				Context:    buildContext,
				Dockerfile: "Dockerfile",
				Repo:       "casefile-test-builder",
				Tag:        "latest",
				BuildArgs:  buildArgs,
				BuildOptionsModifier: func(opts *build.ImageBuildOptions) {
					opts.Target = "builder"
				},
				PrintBuildLog: true,
			},
		},
		Started: false,
	})
	if err != nil {
		return testcontainers.FromDockerfile{}, fmt.Errorf("failed to build casefile-test-builder: %w", err)
	}
	tc.ServerBuilder = builder

	repo, tag, _ := strings.Cut(serverImage, ":")
	return testcontainers.FromDockerfile{
		Context:    buildContext,
		Dockerfile: "Dockerfile",
		Repo:       repo,
		Tag:        tag,
		KeepImage:  true,
		BuildArgs:  buildArgs,
		BuildOptionsModifier: func(opts *build.ImageBuildOptions) {
			opts.Target = "runtime"
		},
		PrintBuildLog: true,
	}, nil
}

// HostConfig returns a configuration that reaches the database container from the host.
func (tc *Containers) HostConfig(ctx context.Context) (*config.Config, error) {
	host, err := tc.DB.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := tc.DB.MappedPort(ctx, tc.dbPort)
	if err != nil {
		return nil, err
	}
	return &config.Config{
		DBType:            tc.dbType,
		DBHost:            host,
		DBPort:            port.Port(),
		DBDatabase:        os.Getenv("DB_DATABASE"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBConnectionLimit: 5,
		DBLogLevel:        "silent",
		SessionTTL:        time.Hour,
	}, nil
}

// RedisAddr returns the host-reachable address of the redis container.
func (tc *Containers) RedisAddr(ctx context.Context) (string, error) {
	if tc.Redis == nil {
		return "", fmt.Errorf("redis container not started")
	}
	host, err := tc.Redis.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := tc.Redis.MappedPort(ctx, redisPort)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

// BaseURL returns the host-reachable http address of the casefile container.
func (tc *Containers) BaseURL(ctx context.Context) (string, error) {
	if tc.Server == nil {
		return "", fmt.Errorf("casefile container not started")
	}
	host, err := tc.Server.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := tc.Server.MappedPort(ctx, tc.serverPort)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port()), nil
}

func dbInitEnv(dbType string) map[string]string {
	switch dbType {
	case "postgres", "postgresql":
		return map[string]string{
			"POSTGRES_PASSWORD": os.Getenv("DB_PASSWORD"),
			"POSTGRES_USER":     os.Getenv("DB_USER"),
			"POSTGRES_DB":       os.Getenv("DB_DATABASE"),
		}
	case "mariadb", "mysql":
		return map[string]string{
			"MYSQL_ROOT_PASSWORD": os.Getenv("DB_ROOT_PASSWORD"),
			"MYSQL_DATABASE":      os.Getenv("DB_DATABASE"),
			"MYSQL_USER":          os.Getenv("DB_USER"),
			"MYSQL_PASSWORD":      os.Getenv("DB_PASSWORD"),
		}
	}
	return nil
}

// mysqlInit waits for the server to accept connections and grants the application user
// full rights on the casefile database.
func mysqlInit(dbHost string, dbPort nat.Port) error {
	db, err := sql.Open("mysql", fmt.Sprintf("root:%s@tcp(%s:%s)/", os.Getenv("DB_ROOT_PASSWORD"), dbHost, dbPort.Port()))
	if err != nil {
		return err
	}
	defer db.Close()

	for i := 0; i < 30; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("database not ready after 30 seconds: %w", err)
	}

	database := os.Getenv("DB_DATABASE")
	user := os.Getenv("DB_USER")
	statements := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database),
		fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", user, os.Getenv("DB_PASSWORD")),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%'", database, user),
		"FLUSH PRIVILEGES",
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%w : when executing > %s", err, stmt)
		}
	}
	return nil
}

func imageExists(ctx context.Context, imageName string) (bool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return false, err
	}
	defer cli.Close()

	images, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == imageName {
				return true, nil
			}
		}
	}

	return false, nil
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
