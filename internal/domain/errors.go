package domain

import "errors"

// ErrAlreadyWatched возвращается при повторной регистрации пары (чат, хэндл).
var ErrAlreadyWatched = errors.New("хэндл уже зарегистрирован в этом чате")

// ErrNotWatched возвращается при снятии несуществующей подписки.
var ErrNotWatched = errors.New("хэндл не зарегистрирован в этом чате")

// ErrNoAnnouncementChannel возвращается при отключении анонсов там, где они не включены.
var ErrNoAnnouncementChannel = errors.New("канал анонсов не настроен")
