package repo

import "errors"

// ErrNotFound — запись не найдена в БД. Репозитории возвращают его
// вместо pgx.ErrNoRows, чтобы вызывающий код не зависел от драйвера.
var ErrNotFound = errors.New("not found")
