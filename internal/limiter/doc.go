// Package limiter ограничивает одновременные запросы по организациям.
//
// Разделение ответственности:
//   - настроенный потолок — строка в Postgres (источник истины),
//     кэшируется в Redis с TTL и инвалидацией при изменении
//   - счётчик запросов в полёте — ключ в Redis, эфемерный:
//     потеря счётчика даёт временное недо-ограничение, не отказ
//
// Admission-протокол (TryAcquire): атомарный INCR, затем сравнение
// с лимитом; превышение откатывается DECR. При лимите N два запроса,
// конкурирующие за последний слот, оба инкрементируют счётчик,
// но проверку N+1 > N пройдёт только один.
//
// Release выравнивает счётчик к нулю при уходе в минус — лишний
// Release после потери счётчика не ломает учёт.
package limiter
