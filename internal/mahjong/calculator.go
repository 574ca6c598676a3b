package mahjong

// 顺位奖励：1位+25、2位+10、3位-5、4位-15。
// 不在表中的顺位贡献零奖励，但合法顺位已由调用方在计算前校验。
var rankBonus = map[int]int{
	1: 25,
	2: 10,
	3: -5,
	4: -15,
}

// floorDiv 计算向负无穷取整的整数除法。
// Go的除法向零截断，finalScore低于基准分时二者结果不同。
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// CalcPoint 根据顺位和终局持点计算积分增减。
// point = floor((finalScore - 25000) / 1000) + rankBonus(rank)
// 纯函数，无任何I/O与副作用。
func CalcPoint(rank, finalScore int) int {
	return floorDiv(finalScore-25000, 1000) + rankBonus[rank]
}

// ValidRank 检查顺位是否在1至4之间。
func ValidRank(rank int) bool {
	return rank >= 1 && rank <= 4
}
