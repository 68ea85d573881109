package util

import (
	"container/list"
	"os"
	"strconv"
	"sync"

	"gorm.io/gorm"
)

// The endpoint audit log resolves user IDs to emails on every request, which
// would otherwise mean a users lookup per request. A small LRU in front of the
// table absorbs almost all of those reads.
type emailCache struct {
	mu       sync.Mutex
	order    *list.List
	byID     map[uint]*list.Element
	capacity int
}

type emailEntry struct {
	userID uint
	email  string
}

var userCache *emailCache

func (c *emailCache) get(userID uint) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ele, ok := c.byID[userID]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(ele)
	return ele.Value.(emailEntry).email, true
}

func (c *emailCache) set(userID uint, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.byID[userID]; ok {
		c.order.MoveToFront(ele)
		ele.Value = emailEntry{userID: userID, email: email}
		return
	}
	c.byID[userID] = c.order.PushFront(emailEntry{userID: userID, email: email})
	if c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *emailCache) evictOldest() {
	tail := c.order.Back()
	if tail == nil {
		return
	}
	delete(c.byID, tail.Value.(emailEntry).userID)
	c.order.Remove(tail)
}

// InitUserEmailCache sets up the cache with the given capacity. Capacities
// of zero or below fall back to 1000 entries.
func InitUserEmailCache(capacity int) {
	if capacity <= 0 {
		capacity = 1000
	}
	userCache = &emailCache{
		order:    list.New(),
		byID:     make(map[uint]*list.Element),
		capacity: capacity,
	}
}

// UserEmailCacheGet reports the cached email for a user ID, if any.
func UserEmailCacheGet(userID uint) (string, bool) {
	if userCache == nil {
		return "", false
	}
	return userCache.get(userID)
}

// UserEmailCacheSet records the email for a user ID, evicting the least
// recently used entry when the cache is full.
func UserEmailCacheSet(userID uint, email string) {
	if userCache == nil {
		return
	}
	userCache.set(userID, email)
}

// GetUserEmail resolves a user ID to an email, consulting the cache before
// the users table and caching whatever the table returns. Unknown users and
// lookup errors resolve to the empty string.
func GetUserEmail(db *gorm.DB, userID uint) string {
	if userID == 0 {
		return ""
	}
	if email, ok := UserEmailCacheGet(userID); ok {
		return email
	}
	if db == nil {
		return ""
	}
	var row struct{ Email string }
	if err := db.Table("users").Select("email").Where("id = ?", userID).Take(&row).Error; err != nil {
		return ""
	}
	if row.Email != "" {
		UserEmailCacheSet(userID, row.Email)
	}
	return row.Email
}

// InitUserEmailCacheFromEnv sizes the cache from USER_EMAIL_CACHE_SIZE,
// falling back to the default when the variable is unset or not a number.
func InitUserEmailCacheFromEnv() {
	n, err := strconv.Atoi(os.Getenv("USER_EMAIL_CACHE_SIZE"))
	if err != nil {
		n = 0
	}
	InitUserEmailCache(n)
}
