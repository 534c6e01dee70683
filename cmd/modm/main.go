package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/modmdb/modm/internal/connection"
	"github.com/modmdb/modm/internal/document"
	"github.com/modmdb/modm/internal/eventbus"
	"github.com/modmdb/modm/internal/mongostore"
	"github.com/modmdb/modm/internal/otel"
	"github.com/modmdb/modm/internal/registry"
	"github.com/modmdb/modm/internal/resolver"
)

const rootUsage = `modm — document reference resolution tools

USAGE:
  modm <command> [flags]

COMMANDS:
  resolve          Load a document and resolve its references
  help             Show help for any command
`

const resolveUsage = `resolve FLAGS:
  -mongo.uri <uri>        MongoDB connection URI (default: mongodb://localhost:27017)
  -mongo.db <name>        Database name (required)
  -collection <name>      Collection holding the root document (required)
  -id <id>                Identifier of the root document (required).
                          A 24-char hex value is treated as an ObjectId.
  -depth <n>              Maximum reference depth to resolve (default: 1)
  -timeout <duration>     Overall timeout, e.g. 10s (default: 10s)
  -pretty                 Pretty-print the JSON output
  -otel.endpoint <addr>   OTLP collector endpoint
  -otel.service <name>    OpenTelemetry service name (default: modm)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("modm", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "resolve":
		return cmdResolve(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "resolve":
		fmt.Print(resolveUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

func cmdResolve(args []string) error {
	uri := "mongodb://localhost:27017"
	dbName := ""
	coll := ""
	rawID := ""
	depth := 1
	timeout := 10 * time.Second
	pretty := false
	otelEndpoint := ""
	otelService := "modm"

	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&uri, "mongo.uri", uri, "MongoDB connection URI")
	fs.StringVar(&dbName, "mongo.db", dbName, "Database name")
	fs.StringVar(&coll, "collection", coll, "Collection holding the root document")
	fs.StringVar(&rawID, "id", rawID, "Identifier of the root document")
	fs.IntVar(&depth, "depth", depth, "Maximum reference depth to resolve")
	fs.DurationVar(&timeout, "timeout", timeout, "Overall timeout")
	fs.BoolVar(&pretty, "pretty", pretty, "Pretty-print the JSON output")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, resolveUsage)
		return err
	}
	if dbName == "" || coll == "" || rawID == "" {
		fmt.Fprint(os.Stderr, resolveUsage)
		return fmt.Errorf("-mongo.db, -collection and -id are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	db, err := connection.Connect(ctx, connection.DefaultAlias, uri, dbName)
	if err != nil {
		return err
	}
	defer func() { _ = connection.Disconnect(context.Background(), connection.DefaultAlias) }()

	store := mongostore.New(db)
	id := parseID(rawID)
	rows, err := store.FindManyByID(ctx, coll, []any{id})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no document with _id %v in %s", id, coll)
	}

	registerCollections(rows[0], coll)

	out, err := resolver.New(store).Resolve(ctx, rows[0], depth, nil, "")
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	var buf []byte
	if pretty {
		buf, err = json.MarshalIndent(out, "", "  ")
	} else {
		buf, err = json.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(buf))
	return nil
}

// registerCollections declares a schemaless document type for the root
// collection and every collection referenced from the row, so rows fetched
// during resolution have a type to materialize into.
func registerCollections(row document.Raw, root string) {
	set := map[string]struct{}{root: {}}
	collectRefCollections(row, set)
	for col := range set {
		name := registry.TypeNameForCollection(col)
		if _, err := registry.Get(name); err != nil {
			registry.Register(document.NewDynamicMeta(name, col))
		}
	}
}

func collectRefCollections(v any, set map[string]struct{}) {
	switch t := v.(type) {
	case document.Ref:
		set[t.Collection] = struct{}{}
	case map[string]any:
		for _, e := range t {
			collectRefCollections(e, set)
		}
	case []any:
		for _, e := range t {
			collectRefCollections(e, set)
		}
	}
}

// parseID maps the flag value onto the identifier type stored in _id.
// Hex values of ObjectId length become ObjectIds, anything else stays a
// string.
func parseID(s string) any {
	if oid, err := primitive.ObjectIDFromHex(s); err == nil {
		return oid
	}
	return s
}
