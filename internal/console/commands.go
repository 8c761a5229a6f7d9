package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/EgorLis/ethrpc/internal/rpclient"
)

// сплит с поддержкой кавычек: "a b" — один аргумент
var reArg = regexp.MustCompile(`"([^"]*)"|(\S+)`)

var render = protojson.MarshalOptions{Multiline: true, Indent: "  "}

// HandleCommand — одна строка консоли: "!команда ..." или "<method> [params]".
func (c *Console) HandleCommand(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if strings.HasPrefix(line, "!") {
		return c.handleBang(strings.Fields(line))
	}

	method, rest, _ := strings.Cut(line, " ")
	params, err := parseParams(strings.TrimSpace(rest))
	if err != nil {
		return err
	}
	params = c.expandAliases(params)

	call := c.current()
	if call == nil {
		return rpclient.ErrNotConnected
	}
	res, err := call.Await(ctx, method, params...)
	if err != nil {
		return err
	}
	c.println(formatResult(method, res))
	return nil
}

func (c *Console) handleBang(fields []string) error {
	cmd := strings.ToLower(fields[0])
	switch cmd {
	case "!help":
		c.println(strings.Join([]string{
			"<method> [json array]      eth_getBlockByNumber [\"latest\", false]",
			"<method> arg1 arg2 ...     eth_getBalance @golem latest",
			"!state",
			"!pending",
			"!alias <name> <value> | !alias del <name> | !alias list",
			"!watch start [interval] | !watch stop | !watch status",
			"!save",
			"!quit",
		}, "\n"))
		return nil

	case "!state":
		c.println(c.rpc.State())
		return nil

	case "!pending":
		c.println("pending:", c.rpc.Pending())
		return nil

	case "!alias":
		return c.handleAlias(fields[1:])

	case "!watch":
		return c.handleWatch(fields[1:])

	case "!save":
		if err := c.store.Save(); err != nil {
			return err
		}
		c.println("saved")
		return nil

	case "!quit", "!exit":
		return errQuit
	}
	return fmt.Errorf("unknown command %s, try !help", cmd)
}

func (c *Console) handleAlias(args []string) error {
	switch {
	case len(args) == 0 || (len(args) == 1 && strings.EqualFold(args[0], "list")):
		aliases := c.store.Settings().Aliases
		if len(aliases) == 0 {
			c.println("aliases: (empty)")
			return nil
		}
		names := make([]string, 0, len(aliases))
		for n := range aliases {
			names = append(names, n)
		}
		slices.Sort(names)
		rows := make([]string, 0, len(names))
		for _, n := range names {
			rows = append(rows, fmt.Sprintf("@%s = %s", n, aliases[n]))
		}
		c.println("aliases:\n" + strings.Join(rows, "\n"))
		return nil

	case len(args) == 2 && strings.EqualFold(args[0], "del"):
		if err := c.store.DeleteAlias(strings.TrimPrefix(args[1], "@")); err != nil {
			return err
		}
		c.println("alias deleted:", args[1])
		return nil

	case len(args) == 2:
		name := strings.TrimPrefix(args[0], "@")
		if err := c.store.SetAlias(name, args[1]); err != nil {
			return err
		}
		c.println(fmt.Sprintf("alias set: @%s = %s", name, args[1]))
		return nil
	}
	return fmt.Errorf("usage: !alias <name> <value> | !alias del <name> | !alias list")
}

func (c *Console) handleWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: !watch start [interval] | stop | status")
	}
	switch strings.ToLower(args[0]) {
	case "start":
		every := c.watchEvery()
		if len(args) > 1 {
			d, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("bad interval %q: %w", args[1], err)
			}
			every = d
		}
		if err := c.StartWatch(every); err != nil {
			return err
		}
		c.println("watch started, every", every)
		return nil
	case "stop":
		c.StopWatch()
		c.println("watch stopped")
		return nil
	case "status":
		if c.Watching() {
			c.println("watch: running, every", c.watchEvery())
		} else {
			c.println("watch: stopped")
		}
		return nil
	}
	return fmt.Errorf("usage: !watch start [interval] | stop | status")
}

// parseParams — JSON-массив целиком либо аргументы через пробел; аргумент,
// который разбирается как JSON (число, true, {...}), берётся значением,
// остальное — строкой. Числа остаются json.Number и уходят в запрос тем же
// текстом, что введён.
func parseParams(rest string) ([]any, error) {
	if rest == "" {
		return nil, nil
	}
	if strings.HasPrefix(rest, "[") {
		var list []any
		if err := decodeExact(rest, &list); err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
		return list, nil
	}

	var params []any
	for _, m := range reArg.FindAllStringSubmatch(rest, -1) {
		if m[1] != "" || strings.HasPrefix(m[0], `"`) {
			params = append(params, m[1])
			continue
		}
		var v any
		if err := decodeExact(m[2], &v); err == nil {
			params = append(params, v)
			continue
		}
		params = append(params, m[2])
	}
	return params, nil
}

// decodeExact — один JSON-документ без хвоста, числа как json.Number
func decodeExact(s string, out any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after %q", s)
	}
	return nil
}

// expandAliases — "@name" заменяется значением алиаса, в том числе внутри
// массивов и объектов
func (c *Console) expandAliases(params []any) []any {
	var expand func(v any) any
	expand = func(v any) any {
		switch x := v.(type) {
		case string:
			if name, ok := strings.CutPrefix(x, "@"); ok {
				if val, found := c.store.Alias(name); found {
					return val
				}
			}
			return x
		case []any:
			for i := range x {
				x[i] = expand(x[i])
			}
			return x
		case map[string]any:
			for k := range x {
				x[k] = expand(x[k])
			}
			return x
		}
		return v
	}
	for i := range params {
		params[i] = expand(params[i])
	}
	return params
}

// formatResult — результат с отступами; для eth_getBalance ещё и в ETH.
// Через protojson идут только значения, числа которых float64 держит точно,
// остальное форматируется из исходного текста.
func formatResult(method string, res json.RawMessage) string {
	out := string(res)
	var v structpb.Value
	if exactNumbers(res) && protojson.Unmarshal(res, &v) == nil {
		if b, err := render.Marshal(&v); err == nil {
			out = string(b)
		}
	} else {
		var buf bytes.Buffer
		if err := json.Indent(&buf, res, "", "  "); err == nil {
			out = buf.String()
		}
	}
	if method == "eth_getBalance" {
		var hex string
		if json.Unmarshal(res, &hex) == nil {
			if wei, err := hexutil.DecodeBig(hex); err == nil {
				out += " (" + FormatEther(wei) + " ETH)"
			}
		}
	}
	return out
}

// exactNumbers — false, если хоть одно число изменится при переводе в float64
func exactNumbers(raw json.RawMessage) bool {
	var v any
	if decodeExact(string(raw), &v) != nil {
		return false
	}
	var walk func(v any) bool
	walk = func(v any) bool {
		switch x := v.(type) {
		case json.Number:
			f, err := strconv.ParseFloat(x.String(), 64)
			if err != nil {
				return false
			}
			exact, _, err := big.ParseFloat(x.String(), 10, 1024, big.ToNearestEven)
			return err == nil && exact.Cmp(big.NewFloat(f)) == 0
		case []any:
			for _, e := range x {
				if !walk(e) {
					return false
				}
			}
		case map[string]any:
			for _, e := range x {
				if !walk(e) {
					return false
				}
			}
		}
		return true
	}
	return walk(v)
}

// FormatEther — wei в ETH без хвостовых нулей.
func FormatEther(wei *big.Int) string {
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, big.NewFloat(1e18))
	s := f.Text('f', 18)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
