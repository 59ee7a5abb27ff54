package report

// ClassYear is how many years a member has been admitted, measured against
// the reference year. Only 1 through 4 have a report section.
type ClassYear int

const (
	FirstYear  ClassYear = 1
	SecondYear ClassYear = 2
	ThirdYear  ClassYear = 3
	FourthYear ClassYear = 4
)

// ClassYears lists the bucketed years in report order.
var ClassYears = []ClassYear{FirstYear, SecondYear, ThirdYear, FourthYear}

// ClassYearOf computes referenceYear - admissionYear.
func ClassYearOf(referenceYear, admissionYear int) ClassYear {
	return ClassYear(referenceYear - admissionYear)
}

// Bucketed reports whether the class year has its own report section.
func (c ClassYear) Bucketed() bool {
	return c >= FirstYear && c <= FourthYear
}

// Title is the section heading used in the report.
func (c ClassYear) Title() string {
	switch c {
	case FirstYear:
		return "First Years"
	case SecondYear:
		return "Second Years"
	case ThirdYear:
		return "Third Years"
	case FourthYear:
		return "Fourth Years"
	default:
		return "Other Years"
	}
}
