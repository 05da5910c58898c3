package consts

const (
	DROP_TOLERANCE  = 1e-13    // Entries at or below this magnitude are structural zeros when copying foreign matrices
	PIVOT_THRESHOLD = 0.001    // Relative pivot threshold for the sparse LU backend
	EIGEN_STEPS     = 10       // Power-method steps for largest-eigenvalue estimates
	PROLONG_DAMPING = 4.0 / 3. // Damping numerator for smoothed-aggregation prolongation
	MAX_LEVELS      = 20       // Hierarchy depth bound for aggregation coarsening
	MAX_COARSE_SIZE = 64       // Row count below which a level is solved directly
)
