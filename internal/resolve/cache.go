package resolve

import "strings"

// Cache 是一次运行生命周期内的查询缓存：同一个剧名在一次运行中最多
// 触发一次外部搜索。显式构造、按依赖注入传入 Resolver——绝不做成单例，
// 测试可以注入预填或空的缓存。
//
// 键形态：
// - 规范化剧名                  -> 剧集头 tt id（或负缓存哨兵）
// - 剧名 + ".SxxEyy"            -> 单集 tt id
// - 剧名 + ".FOLDERNAME"        -> 冠词后置的目录名
// - 剧名 + ".MOVIENAME"         -> 展示名
//
// 生命周期：随运行创建，从不淘汰、从不落盘（上限是本次运行中不同剧集的数量）。
type Cache struct {
	m map[string]entry
}

type entry struct {
	val      string
	negative bool
}

func NewCache() *Cache {
	return &Cache{m: make(map[string]entry)}
}

// Key 规范化缓存键（小写、空白折叠）。组合键在此基础上拼后缀。
func Key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Get 返回键对应的值；负缓存哨兵不算命中。
func (c *Cache) Get(key string) (string, bool) {
	e, ok := c.m[key]
	if !ok || e.negative {
		return "", false
	}
	return e.val, true
}

func (c *Cache) Put(key, val string) {
	c.m[key] = entry{val: val}
}

// PutNegative 记录“搜索过、没找到，别再试”的哨兵。
func (c *Cache) PutNegative(key string) {
	c.m[key] = entry{negative: true}
}

// IsNegative 报告键是否被负缓存。
func (c *Cache) IsNegative(key string) bool {
	e, ok := c.m[key]
	return ok && e.negative
}

func (c *Cache) Len() int { return len(c.m) }
