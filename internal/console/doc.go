// Package console — “склейка” вокруг rpclient для работы с узлом из терминала:
//   - интерактивная консоль: строка "<method> [params]" уходит как вызов,
//     результат печатается; служебные команды начинаются с "!";
//   - алиасы адресов (@golem вместо 0x7da8...), хранятся в конфиге;
//   - watch — опрос eth_blockNumber с заданным интервалом, печать новых блоков.
//
// Жизненный цикл:
//   - OpenStore("conf/ethrpc.json") — настройки (создаются при отсутствии).
//   - New(client, store, out, logger), затем Start(ctx) и Run(ctx, stdin).
//   - Stop() закрывает соединение и останавливает watch.
//
// Пример строк консоли:
//
//	eth_getBalance @golem latest
//	eth_getBlockByNumber ["latest", false]
//	!alias golem 0x7da82c7ab4771ff031b66538d2fb9b0b047f6cf9
//	!watch start 5s
package console
