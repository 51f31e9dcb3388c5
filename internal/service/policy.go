package service

const DefaultBlockThreshold = 3

// BlockPolicy decides account blocking from the cumulative cancellation count.
type BlockPolicy struct {
	Threshold int
}

func (p BlockPolicy) threshold() int {
	if p.Threshold <= 0 {
		return DefaultBlockThreshold
	}
	return p.Threshold
}

// ShouldBlock reports whether an account with count cancellations must be blocked now.
func (p BlockPolicy) ShouldBlock(count int, alreadyBlocked bool) bool {
	return !alreadyBlocked && count >= p.threshold()
}

func (p BlockPolicy) Warning(count int) string {
	switch t := p.threshold(); {
	case count >= t:
		return " Your account has been blocked due to excessive cancellations."
	case count == t-1:
		return " Warning: One more cancellation will block your account."
	}
	return ""
}
