package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashString(t *testing.T) {
	// sha256("abc")
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		HashString("abc"),
	)
	assert.Len(t, HashString(""), 64)
}

func TestHashIgnoresInsertionOrder(t *testing.T) {
	a := Data{}
	a["ageGroup"] = "20대"
	a["gender"] = "남"
	a["dateGoal"] = "진지한만남"

	b := Data{}
	b["dateGoal"] = "진지한만남"
	b["gender"] = "남"
	b["ageGroup"] = "20대"

	require.Equal(t, Hash(a), Hash(b))
	assert.Equal(t, "ageGroup:20대|dateGoal:진지한만남|gender:남", a.Normalize())
	assert.Equal(t, HashString(a.Normalize()), Hash(a))
}

func TestHashChangesWithOneValue(t *testing.T) {
	a := Data{"ageGroup": "20대", "gender": "남", "dateGoal": "진지한만남"}
	b := Data{"ageGroup": "20대", "gender": "여", "dateGoal": "진지한만남"}

	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestHashNoCollisionsAcrossCohortSpace(t *testing.T) {
	ageGroups := []string{"10대", "20대", "30대", "40대", "50대+"}
	genders := []string{"남", "여", "기타"}
	statuses := []string{"솔로", "연애중", "기혼"}

	seen := make(map[string]string)
	for _, age := range ageGroups {
		for _, g := range genders {
			for _, s := range statuses {
				for year := 2000; year < 2012; year++ {
					d := Data{
						"ageGroup":           age,
						"gender":             g,
						"relationshipStatus": s,
						"zodiac":             ZodiacName(year),
					}
					h := Hash(d)
					prev, dup := seen[h]
					require.False(t, dup, "collision between %s and %s", prev, d.Normalize())
					seen[h] = d.Normalize()
				}
			}
		}
	}
	assert.Len(t, seen, 5*3*3*12)
}

func TestDescribe(t *testing.T) {
	d := Data{"zodiac": "용", "element": "금"}
	assert.Equal(t, "element: 금, zodiac: 용", d.Describe())
}
