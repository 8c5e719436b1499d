package key

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

// Alphabet 去掉了易混淆字符（0/O、1/I/L），剩余 32 个符号。
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Length 是房间 key 的固定长度。
const Length = 6

// Generate 用密码学随机源从 Alphabet 均匀抽取 n 个字符。
// key 的不可猜测性直接决定了未授权访问的门槛，不允许使用弱随机。
func Generate(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 在受支持的平台上不会失败
		panic(err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		// 32 是 2 的幂，低 5 位取模即是均匀分布
		out[i] = Alphabet[b&31]
	}
	return string(out)
}

// Normalize 把外部传入的候选 key 转大写并校验格式。
// ok 为 false 时调用方应改用 Generate，而不是静默修补输入。
func Normalize(candidate string) (string, bool) {
	k := strings.ToUpper(strings.TrimSpace(candidate))
	if len(k) != Length {
		return "", false
	}
	for i := 0; i < len(k); i++ {
		if !strings.ContainsRune(Alphabet, rune(k[i])) {
			return "", false
		}
	}
	return k, true
}

// NewConnID 生成连接级别的随机 id，只作内存 map 的键使用。
func NewConnID() string {
	return uuid.NewString()
}
