// Package computecache implementa un caché en memoria para cálculos caros,
// con TTL por entrada y un enfriamiento (cooldown) por clave que evita que
// ráfagas de llamadas concurrentes disparen el mismo recálculo dos veces.
// El reloj es inyectable para poder probarlo de forma determinista.
package computecache

import (
	"fmt"
	"sync"
	"time"
)

// Clock devuelve la hora actual; inyectable en tests.
type Clock func() time.Time

// ErrThrottled el cálculo para esta clave está en curso o en enfriamiento.
// El caller debe reintentar luego o usar un resultado previo.
type ErrThrottled struct {
	Key        string
	RetryAfter time.Duration
}

func (e *ErrThrottled) Error() string {
	return fmt.Sprintf("cálculo %q en enfriamiento, reintentar en %s", e.Key, e.RetryAfter)
}

type entry struct {
	value       any
	expiresAt   time.Time
	lastStarted time.Time
	computing   bool
	hasValue    bool
}

// Cache caché de cálculos con TTL y enfriamiento por clave.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	cooldown time.Duration
	now      Clock
}

// New construye el caché. cooldown es la ventana mínima entre dos inicios de
// cálculo para la misma clave. clock nil usa time.Now.
func New(cooldown time.Duration, clock Clock) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		entries:  make(map[string]*entry),
		cooldown: cooldown,
		now:      clock,
	}
}

// GetOrCompute devuelve el valor cacheado para key si sigue vigente; si no,
// ejecuta fn y cachea el resultado por ttl. Si la clave está en cálculo o fue
// calculada hace menos del cooldown (y el caché ya expiró), devuelve
// *ErrThrottled sin ejecutar fn. Si fn falla, no se cachea nada pero el
// enfriamiento sigue corriendo, así un fn que falla no se reintenta en ráfaga.
func (c *Cache) GetOrCompute(key string, ttl time.Duration, fn func() (any, error)) (any, error) {
	c.mu.Lock()
	now := c.now()
	e, ok := c.entries[key]
	if ok && e.hasValue && now.Before(e.expiresAt) {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	if ok {
		if e.computing {
			c.mu.Unlock()
			return nil, &ErrThrottled{Key: key, RetryAfter: c.cooldown}
		}
		if since := now.Sub(e.lastStarted); since < c.cooldown {
			c.mu.Unlock()
			return nil, &ErrThrottled{Key: key, RetryAfter: c.cooldown - since}
		}
	} else {
		e = &entry{}
		c.entries[key] = e
	}
	e.computing = true
	e.lastStarted = now
	c.mu.Unlock()

	value, err := fn()

	c.mu.Lock()
	defer c.mu.Unlock()
	e.computing = false
	if err != nil {
		return nil, err
	}
	e.value = value
	e.hasValue = true
	e.expiresAt = c.now().Add(ttl)
	return value, nil
}

// Peek devuelve el valor vigente para key sin disparar cálculo (fallback de
// los callers cuando reciben ErrThrottled).
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.hasValue || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Invalidate descarta la entrada de una clave (no resetea el enfriamiento).
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.hasValue = false
		e.value = nil
	}
}
