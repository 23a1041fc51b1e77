package manager

const dayMillis = 24 * 60 * 60 * 1000

// updateStreak advances the daily streak for a lesson completed at now.
// Days are UTC calendar days. A completion on the day after the last check
// extends the streak; the same day keeps it; a gap resets it to 1. A clock
// that moved backwards leaves the streak alone.
func (m *OverallProgressManager) updateStreak(now int64) {
	p := &m.data
	day := now / dayMillis
	last := p.LastStreakCheck / dayMillis

	switch {
	case p.LastStreakCheck == 0 || p.CurrentStreak == 0:
		p.CurrentStreak = 1
	case day == last:
	case day == last+1:
		p.CurrentStreak++
	case day > last+1:
		p.CurrentStreak = 1
	default:
		return
	}
	p.LastStreakCheck = max(p.LastStreakCheck, now)
}
