// Package rpclient реализует WebSocket-клиент JSON-RPC 2.0 (узлы Ethereum и
// совместимые). Клиент подключается по ws:// или wss://, отправляет запросы
// {"jsonrpc":"2.0","id","method","params"} и сопоставляет ответы по id, даже
// если их несколько в полёте, они приходят в любом порядке и разрезаны по
// фреймам произвольно.
//
// Части:
//   - Engine — таблица ожидающих вызовов и счётчик id одного соединения;
//     входящий текст разбирается jsonstream.Parser, каждый ответ разрешает
//     свой вызов ровно один раз.
//   - Transport — граница с сетью (wsTransport поверх gorilla/websocket:
//     сериализованная запись с write-deadline, ping/pong, реконнект с backoff).
//   - Client — склейка: состояния Disconnected/Connected, обработчики
//     "open" (получает CallFunc соединения) и "close".
//
// При разрыве все ожидающие колбэки получают ErrConnectionClosed. Таймаутов и
// повторов нет; Await с контекстом даёт отмену ожидания поверх колбэков.
//
// Пример:
//
//	c, err := rpclient.New("ws://localhost:8546", rpclient.WithLogger(logger))
//	if err != nil { log.Fatal(err) }
//	c.OnOpen(func(call rpclient.CallFunc) {
//	    _ = call("eth_getBalance", []any{addr, "latest"}, func(res json.RawMessage, err error) {
//	        fmt.Println(string(res), err)
//	    })
//	})
//	c.OnClose(func() { fmt.Println("lost connection") })
//	if err := c.Connect(ctx); err != nil { log.Fatal(err) }
//	defer c.Close()
package rpclient
