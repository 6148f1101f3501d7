package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/iota-uz/entity-registry/modules/registry/domain/actor"
	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
)

func parseUUID(flag, v string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(v))
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --%s: %w", flag, err))
	}
	return id, nil
}

func parseOptionalUUID(flag, v string) (uuid.UUID, error) {
	if strings.TrimSpace(v) == "" {
		return uuid.Nil, nil
	}
	return parseUUID(flag, v)
}

func parseKind(v string) (changerequest.Kind, error) {
	k := changerequest.Kind(strings.ToUpper(strings.TrimSpace(v)))
	if !k.Valid() {
		return "", withCode(exitUsage, fmt.Errorf("invalid --kind %q (expected one of %v)", v, changerequest.Kinds()))
	}
	return k, nil
}

func parseActor(flag, v string, roles []string) (actor.Actor, error) {
	id, err := parseUUID(flag, v)
	if err != nil {
		return actor.Actor{}, err
	}
	return actor.New(id, roles...), nil
}

// readPayload returns the inline payload or the contents of path. A path of
// "-" reads stdin.
func readPayload(inline, path string) ([]byte, error) {
	switch {
	case inline != "" && path != "":
		return nil, withCode(exitUsage, fmt.Errorf("--payload and --payload-file are mutually exclusive"))
	case inline != "":
		return []byte(inline), nil
	case path == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("read stdin: %w", err))
		}
		return b, nil
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("read --payload-file: %w", err))
		}
		return b, nil
	}
	return nil, nil
}

func decodePayload(kind changerequest.Kind, raw []byte) (changerequest.Payload, error) {
	if len(raw) == 0 {
		return nil, withCode(exitUsage, fmt.Errorf("payload is required"))
	}
	p, err := changerequest.DecodePayload(kind, raw)
	if err != nil {
		return nil, withCode(exitValidation, err)
	}
	return p, nil
}
