// Package lane holds the lane-tracking core: binary masks, the two pixel
// search modes, polynomial fitting, curvature and offset estimation, and the
// cold/warm tracking state machine.
//
// Nothing here depends on OpenCV. Mask extraction and rendering live in
// internal/mask and internal/render and exchange data with this package
// through Mask and Polynomial.
package lane
